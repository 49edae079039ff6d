package gauge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/soundgauge/model"
)

func TestBarFillWidth(t *testing.T) {
	b := Bar{X: 10, Y: 35, Width: 140, Height: 30, Outline: model.Gray}
	tests := []struct {
		fraction float64
		want     int
	}{
		{0, 0},
		{-1, 0},
		{0.005, 0},
		{0.01, 0},
		{0.5, 69},
		{1, 138},
		{2, 138},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.FillWidth(tt.fraction), "fraction %v", tt.fraction)
	}
}

func TestBarDraw(t *testing.T) {
	b := Bar{X: 2, Y: 2, Width: 10, Height: 5, Outline: model.Gray}
	buf := model.NewPixelBuffer(14, 9)
	buf.Clear(model.Red)

	b.Draw(buf, 1, model.Green)
	assert.Equal(t, 2*10+2*3, buf.Count(model.Gray))
	assert.Equal(t, 8*3, buf.Count(model.Green), "full fill stays inside the outline")
	assert.Equal(t, 0, buf.Count(model.Red))

	b.Draw(buf, 0, model.Green)
	assert.Equal(t, 0, buf.Count(model.Green))
	assert.Equal(t, model.Background, buf.Get(3, 3))

	b.Draw(buf, 0.5, model.Green)
	assert.Equal(t, 4*3, buf.Count(model.Green))
	assert.Equal(t, model.Green, buf.Get(3, 3))
	assert.Equal(t, model.Background, buf.Get(7, 3))
}

func TestBarValidate(t *testing.T) {
	assert.ErrorIs(t, Bar{Width: 2, Height: 10}.Validate(), ErrInvalidConfig)
	assert.NoError(t, Bar{Width: 3, Height: 3}.Validate())
}
