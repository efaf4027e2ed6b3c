package repositories

import "context"

// Vision abstracts image understanding: it accepts a finished image and
// returns a natural-language description of what the wearer saw.
type Vision interface {
	DescribeImage(ctx context.Context, image []byte, prompt string) (string, error)
}
