package imaging

import (
	"io"
)

type (
	// Source is one user-selected file. Size is the declared size in bytes,
	// negative when unknown.
	Source struct {
		Name string
		Size int64
		Open func() (io.ReadCloser, error)
	}

	Outcome struct {
		Name  string
		Image *Image
		Err   error
	}
)

// Batch normalizes sources one after another. Every source yields exactly one
// outcome in input order; a failed file does not stop the rest.
func (n *Normalizer) Batch(sources []Source) []Outcome {
	outcomes := make([]Outcome, 0, len(sources))
	for _, src := range sources {
		img, err := n.normalizeSource(src)
		outcomes = append(outcomes, Outcome{Name: src.Name, Image: img, Err: err})
	}
	return outcomes
}

func (n *Normalizer) normalizeSource(src Source) (*Image, error) {
	if src.Size > n.maxSourceBytes {
		return nil, ErrFileTooLarge
	}
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return n.NormalizeReader(rc, src.Size)
}

// Succeeded returns the payloads of the successful outcomes, in order.
func Succeeded(outcomes []Outcome) []string {
	payloads := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Image != nil {
			payloads = append(payloads, o.Image.Payload)
		}
	}
	return payloads
}
