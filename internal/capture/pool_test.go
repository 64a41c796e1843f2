package capture

import (
	"errors"
	"slices"
	"testing"

	"golang.org/x/sys/unix"
)

func allocate(t *testing.T, drv *fakeDriver) (*Device, *BufferPool) {
	t.Helper()
	dev := openFake(t, drv)
	pool, err := NewMmapStrategy(drv, discardLogger()).Allocate(dev, DefaultBufferCount)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	return dev, pool
}

func TestAllocate_InsufficientBuffers(t *testing.T) {
	for _, grant := range []uint32{0, 1} {
		drv := newFakeDriver()
		drv.grant, drv.grantSet = grant, true

		pool, err := NewMmapStrategy(drv, discardLogger()).Allocate(openFake(t, drv), DefaultBufferCount)
		assertKind(t, err, KindInsufficientBuffers)
		if pool != nil {
			t.Errorf("grant %d: expected no pool", grant)
		}
		if n := drv.count("mmap"); n != 0 {
			t.Errorf("grant %d: expected no mapping, got %d mmap calls", grant, n)
		}
	}
}

func TestAllocate_MappingUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"einval", unix.EINVAL},
		{"other", unix.EBUSY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver()
			drv.reqErr = tt.err

			_, err := NewMmapStrategy(drv, discardLogger()).Allocate(openFake(t, drv), DefaultBufferCount)
			assertKind(t, err, KindMappingUnsupported)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected cause %v, got %v", tt.err, err)
			}
			if n := drv.count("mmap"); n != 0 {
				t.Errorf("expected no mapping, got %d", n)
			}
		})
	}
}

func TestAllocate_GrantedCount(t *testing.T) {
	drv := newFakeDriver()
	drv.grant, drv.grantSet = 3, true

	_, pool := allocate(t, drv)
	if pool.Len() != 3 {
		t.Fatalf("expected 3 buffers, got %d", pool.Len())
	}
	for i := uint32(0); i < 3; i++ {
		b := pool.Buffer(i)
		if b.Index != i || b.Length != fakeBufferLen || len(b.Bytes()) != fakeBufferLen || b.State() != BufferFree {
			t.Errorf("buffer %d: unexpected %+v", i, b)
		}
	}
	if pool.Buffer(3) != nil {
		t.Error("expected nil for out of range index")
	}
}

func TestAllocate_MapFailureUnwinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDriver)
	}{
		{"mmap fails", func(f *fakeDriver) { f.mmapErr = map[uint32]error{2: unix.ENOMEM} }},
		{"querybuf fails", func(f *fakeDriver) { f.queryErr = map[uint32]error{2: unix.EINVAL} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver()
			tt.setup(drv)

			pool, err := NewMmapStrategy(drv, discardLogger()).Allocate(openFake(t, drv), DefaultBufferCount)
			assertKind(t, err, KindMapFailed)
			if pool != nil {
				t.Error("expected no partial pool")
			}
			if !slices.Equal(drv.unmapped, []uint32{0, 1}) {
				t.Errorf("expected buffers 0,1 unmapped, got %v", drv.unmapped)
			}
			if len(drv.mapped) != 0 {
				t.Errorf("mappings leaked: %d", len(drv.mapped))
			}
			if drv.reqbufs[len(drv.reqbufs)-1] != 0 {
				t.Errorf("expected reservation released, reqbufs=%v", drv.reqbufs)
			}
		})
	}
}

func TestBufferPool_Transitions(t *testing.T) {
	drv := newFakeDriver()
	_, pool := allocate(t, drv)

	check := func(free, queued, filled int) {
		t.Helper()
		f, q, l := pool.Counts()
		if f != free || q != queued || l != filled {
			t.Errorf("counts = %d/%d/%d, want %d/%d/%d", f, q, l, free, queued, filled)
		}
		if f+q+l != pool.Len() {
			t.Errorf("counts do not add up to %d", pool.Len())
		}
	}

	check(4, 0, 0)
	pool.Acquire(0)
	pool.Acquire(1)
	check(2, 2, 0)
	pool.MarkFilled(0)
	check(2, 1, 1)
	pool.Release(0)
	check(3, 1, 0)
	pool.Acquire(0)
	pool.MarkFilled(1)
	pool.ResetQueued()
	check(4, 0, 0)
}

func TestBufferPool_ObserveReportsCounts(t *testing.T) {
	drv := newFakeDriver()
	_, pool := allocate(t, drv)

	rec := &countingRecorder{}
	pool.Observe(rec.BuffersChanged)
	if rec.last != [3]int{4, 0, 0} {
		t.Errorf("expected initial counts, got %v", rec.last)
	}
	pool.Acquire(2)
	if rec.last != [3]int{3, 1, 0} {
		t.Errorf("expected 3/1/0, got %v", rec.last)
	}
}

func TestBufferPool_InvalidTransitionPanics(t *testing.T) {
	tests := []struct {
		name string
		op   func(*BufferPool)
	}{
		{"fill free buffer", func(p *BufferPool) { p.MarkFilled(0) }},
		{"release queued buffer", func(p *BufferPool) { p.Acquire(0); p.Release(0) }},
		{"acquire twice", func(p *BufferPool) { p.Acquire(1); p.Acquire(1) }},
		{"out of range", func(p *BufferPool) { p.Acquire(9) }},
		{"after teardown", func(p *BufferPool) { _ = p.Teardown(); p.Acquire(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pool := allocate(t, newFakeDriver())
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.op(pool)
		})
	}
}

func TestBufferPool_TeardownContinuesPastFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.munmapErr = map[uint32]error{2: unix.EINVAL}
	_, pool := allocate(t, drv)

	err := pool.Teardown()
	assertKind(t, err, KindUnmapFailed)
	if !errors.Is(err, unix.EINVAL) {
		t.Errorf("expected munmap cause in chain, got %v", err)
	}
	if !slices.Equal(drv.unmapped, []uint32{0, 1, 2, 3}) {
		t.Errorf("expected every buffer to be unmapped once, got %v", drv.unmapped)
	}

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatal("expected *Error")
	}
	if failed, _ := ce.Context["buffers"].([]uint32); !slices.Equal(failed, []uint32{2}) {
		t.Errorf("expected one failed buffer, got %v", ce.Context["buffers"])
	}

	if err := pool.Teardown(); err != nil {
		t.Errorf("second Teardown() = %v", err)
	}
	if len(drv.unmapped) != 4 {
		t.Errorf("second teardown unmapped again: %v", drv.unmapped)
	}
}

func TestBufferPool_TeardownReleasesReservation(t *testing.T) {
	drv := newFakeDriver()
	_, pool := allocate(t, drv)

	if err := pool.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if !slices.Equal(drv.reqbufs, []uint32{4, 0}) {
		t.Errorf("expected REQBUFS 4 then 0, got %v", drv.reqbufs)
	}
	if len(drv.mapped) != 0 {
		t.Errorf("mappings leaked: %d", len(drv.mapped))
	}
}

func TestMmapStrategy_Supports(t *testing.T) {
	s := NewMmapStrategy(newFakeDriver(), nil)
	if s.Name() != "mmap" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Supports(0x00000001) {
		t.Error("capture without streaming should not be supported")
	}
	if !s.Supports(0x04000001) {
		t.Error("capture with streaming should be supported")
	}
}
