package main

import (
	"os"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/object"
	"github.com/li-script/lightning-sub000/internal/testprog"
	"github.com/li-script/lightning-sub000/internal/vmconfig"
)

// env bundles the heap/string-table pair every subcommand needs to
// assemble and run a prototype, mirroring internal/testprog's own
// newTestVM construction idiom.
type env struct {
	cfg     vmconfig.Config
	heap    *heap.Heap
	strings *object.Strings
}

func newEnv() *env {
	cfg := vmconfig.Default()
	h := heap.New(cfg, heap.NewArenaAllocator())
	return &env{cfg: cfg, heap: h, strings: object.NewStrings(h, cfg)}
}

// assembleFile reads path and assembles it with internal/testprog's
// textual assembler, the "test-only textual form" §11.8 allows as an
// alternative to a binary-serialized prototype.
func (e *env) assembleFile(path string) (*bytecode.Prototype, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return testprog.New(e.strings).Assemble(string(src))
}
