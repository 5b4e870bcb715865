//go:build unix

package heap

import (
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/li-script/lightning-sub000/internal/rtlog"
)

// osAllocator is the default PageAllocator: non-executable pages are
// anonymous mmap regions obtained through github.com/edsrzf/mmap-go, and
// executable pages are mapped directly via golang.org/x/sys/unix so they
// can carry PROT_EXEC (mmap-go has no portable way to request that).
type osAllocator struct {
	pageSize int
}

// NewOSAllocator returns the default, OS-backed PageAllocator.
func NewOSAllocator() PageAllocator {
	return &osAllocator{pageSize: unix.Getpagesize()}
}

func (a *osAllocator) roundUp(n int) int {
	if n <= 0 {
		n = a.pageSize
	}
	return (n + a.pageSize - 1) / a.pageSize * a.pageSize
}

func (a *osAllocator) Acquire(minBytes int, executable bool) (RawPage, bool) {
	length := a.roundUp(minBytes)
	log := rtlog.For("heap")

	if executable {
		b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			log.Error().Err(err).Int("bytes", length).Msg("executable page acquisition failed")
			return RawPage{}, false
		}
		return RawPage{Bytes: b, Executable: true}, true
	}

	m, err := mmap.MapRegion(nil, length, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		log.Error().Err(err).Int("bytes", length).Msg("page acquisition failed")
		return RawPage{}, false
	}
	return RawPage{Bytes: []byte(m)}, true
}

func (a *osAllocator) Release(p RawPage) {
	if p.Executable {
		_ = unix.Munmap(p.Bytes)
		return
	}
	m := mmap.MMap(p.Bytes)
	_ = m.Unmap()
}
