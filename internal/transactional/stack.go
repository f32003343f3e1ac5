package transactional

import "context"

type stackKey struct{}

// Stack is the chain of transactional frames visible to one logical call chain, innermost
// frame first in memory. Frames are immutable: pushing derives a new Stack and the outer
// one stays valid, so goroutines started from a context keep observing the same stack.
type Stack struct {
	parent     *Stack
	dataSource string
	// handle is nil for a frame that hides the data source's transaction.
	handle *Handle
	depth  int
}

// WithStack binds stack to the returned context.
func WithStack(ctx context.Context, stack *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, stack)
}

// CurrentStack returns the stack bound to ctx, or nil.
func CurrentStack(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}
	stack, _ := ctx.Value(stackKey{}).(*Stack)
	return stack
}

// Current returns the innermost handle visible to ctx. A data source hidden by a
// not_supported frame does not count, but other data sources behind that frame do.
func Current(ctx context.Context) *Handle {
	return CurrentStack(ctx).Visible()
}

func (s *Stack) push(dataSource string, h *Handle) *Stack {
	return &Stack{
		parent:     s,
		dataSource: dataSource,
		handle:     h,
		depth:      s.Depth() + 1,
	}
}

func (s *Stack) suspend(dataSource string) *Stack {
	return s.push(dataSource, nil)
}

// Depth is the number of frames, zero for a nil stack.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Top returns the innermost frame's handle. It is nil when the stack is empty or when
// the innermost frame suspended its data source.
func (s *Stack) Top() *Handle {
	if s == nil {
		return nil
	}
	return s.handle
}

// Visible returns the innermost handle whose data source is not hidden by a nearer
// suspension frame.
func (s *Stack) Visible() *Handle {
	var hidden map[string]bool
	for cur := s; cur != nil; cur = cur.parent {
		if cur.handle == nil {
			if hidden == nil {
				hidden = make(map[string]bool)
			}
			hidden[cur.dataSource] = true
			continue
		}
		if !hidden[cur.dataSource] {
			return cur.handle
		}
	}
	return nil
}

// TopFor returns the handle visible for one data source.
func (s *Stack) TopFor(dataSource string) *Handle {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.dataSource == dataSource {
			return cur.handle
		}
	}
	return nil
}

// Handles lists the handles of every frame, outermost first. Suspended frames are skipped.
func (s *Stack) Handles() []*Handle {
	var out []*Handle
	for cur := s; cur != nil; cur = cur.parent {
		if cur.handle != nil {
			out = append(out, cur.handle)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
