package sink

import (
	"errors"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
)

// Multi blits to every sink in order. A failing sink does not stop the others;
// all errors are joined.
type Multi []gauge.DisplaySink

func (m Multi) Blit(buf *model.PixelBuffer, x, y int) error {
	var errs []error
	for _, s := range m {
		if err := s.Blit(buf, x, y); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
