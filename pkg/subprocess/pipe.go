//go:build unix

package subprocess

import (
	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// pipeOpener returns a close-on-exec pipe as (read end, write end).
type pipeOpener func() (r int, w int, err error)

// pipeEnd owns one descriptor until it is either released or closed.
type pipeEnd struct {
	fd int
}

// release hands the descriptor to a new owner. The end no longer closes it.
func (e *pipeEnd) release() int {
	fd := e.fd
	e.fd = NotInUse
	return fd
}

func (e *pipeEnd) close() error {
	if e.fd == NotInUse {
		return nil
	}
	fd := e.fd
	e.fd = NotInUse
	if err := unix.Close(fd); err != nil {
		return errors.Errorf("closing fd %d: %w", fd, err)
	}
	return nil
}

type pipePair struct {
	r pipeEnd
	w pipeEnd
}

func newPipePair(open pipeOpener) (*pipePair, error) {
	r, w, err := open()
	if err != nil {
		return nil, err
	}
	return &pipePair{r: pipeEnd{fd: r}, w: pipeEnd{fd: w}}, nil
}

// pipeSet holds the pipes for one spawn. supply feeds the child's stdin, ingest carries
// the child's stdout. Either may be nil.
type pipeSet struct {
	supply *pipePair
	ingest *pipePair
}

func provisionPipes(open pipeOpener, wantSupply, wantIngest bool) (_ *pipeSet, retErr error) {
	set := &pipeSet{}
	defer func() {
		if retErr != nil {
			_ = set.closeAll()
		}
	}()

	if wantSupply {
		p, err := newPipePair(open)
		if err != nil {
			return nil, errors.Errorf("creating supply pipe: %w", err)
		}
		set.supply = p
	}

	if wantIngest {
		p, err := newPipePair(open)
		if err != nil {
			return nil, errors.Errorf("creating ingest pipe: %w", err)
		}
		set.ingest = p
	}

	return set, nil
}

// childStdin is the descriptor placed on slot 0 of the child.
func (s *pipeSet) childStdin() uintptr {
	if s.supply != nil {
		return uintptr(s.supply.r.fd)
	}
	return uintptr(unix.Stdin)
}

// childStdout is the descriptor placed on slot 1 of the child.
func (s *pipeSet) childStdout() uintptr {
	if s.ingest != nil {
		return uintptr(s.ingest.w.fd)
	}
	return uintptr(unix.Stdout)
}

// closeChildEnds drops the parent's copies of the ends that belong to the child.
func (s *pipeSet) closeChildEnds() (retErr error) {
	if s.supply != nil {
		if err := s.supply.r.close(); err != nil {
			retErr = multierror.Append(retErr, err)
		}
	}
	if s.ingest != nil {
		if err := s.ingest.w.close(); err != nil {
			retErr = multierror.Append(retErr, err)
		}
	}
	return retErr
}

func (s *pipeSet) closeAll() (retErr error) {
	for _, p := range []*pipePair{s.supply, s.ingest} {
		if p == nil {
			continue
		}
		if err := p.r.close(); err != nil {
			retErr = multierror.Append(retErr, err)
		}
		if err := p.w.close(); err != nil {
			retErr = multierror.Append(retErr, err)
		}
	}
	return retErr
}
