// Package vmconfig holds the tunables that parameterize the runtime core:
// GC debt thresholds, page sizing, the string set's overflow run, and register
// allocator class sizes. None of these change the language's observable
// semantics except where noted (FastMath).
package vmconfig

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// ABIVersion is the wire-format/ABI version advertised by this build. It is
// validated with golang.org/x/mod/semver so embedders can gate compatibility
// the same way Go modules do.
const ABIVersion = "v0.1.0"

// Config holds every runtime tunable named by the specification.
type Config struct {
	// MinDebt is the allocation-debt threshold (in bytes) after which the
	// collector starts counting down Interval further bytes of allocation
	// before it forces a cycle.
	MinDebt int64
	// MaxDebt is the allocation-debt threshold that forces an immediate
	// collection regardless of Interval.
	MaxDebt int64
	// Interval is the number of allocated bytes counted down once MinDebt
	// is crossed.
	Interval int64
	// MinimumPage is the smallest page the allocator will ever request,
	// in bytes; always a multiple of 4 KiB.
	MinimumPage int64
	// StringOverflow is the fixed linear-probe run length used by the
	// interned string set before a rehash is triggered. Open-addressed
	// tables use their own fixed run (object's tableOverflow, 3).
	StringOverflow int
	// GPRegisters and FPRegisters are K/M color counts for the register
	// allocator's two independent coloring problems. regalloc.Allocate
	// takes its own regalloc.Config; nothing copies these values into it.
	GPRegisters int
	FPRegisters int
	// FastMath resolves the open question around NaN comparison
	// semantics under constant folding. False (the default) keeps strict
	// IEEE-754 behavior: NaN == x is always false. True additionally lets
	// the optimizer fold compare(eq/ne) on operands it can prove are
	// identical SSA values without conservatively assuming either side
	// could be NaN.
	FastMath bool
	// ABIVersion is echoed for embedders; must be a valid semver string.
	ABIVersion string
}

// Default returns the specification's default configuration.
func Default() Config {
	return Config{
		MinDebt:        1 << 20, // 1 MiB, matches gc::minimum_allocation scale
		MaxDebt:        8 << 20,
		Interval:       4096,
		MinimumPage:    512 * 1024,
		StringOverflow: 8,
		GPRegisters:    14,
		FPRegisters:    16,
		FastMath:       false,
		ABIVersion:     ABIVersion,
	}
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	if c.MinDebt <= 0 || c.MaxDebt <= 0 {
		return fmt.Errorf("vmconfig: debt thresholds must be positive")
	}
	if c.MinDebt > c.MaxDebt {
		return fmt.Errorf("vmconfig: MinDebt (%d) must not exceed MaxDebt (%d)", c.MinDebt, c.MaxDebt)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("vmconfig: Interval must be positive")
	}
	if c.MinimumPage <= 0 || c.MinimumPage%4096 != 0 {
		return fmt.Errorf("vmconfig: MinimumPage must be a positive multiple of 4096")
	}
	if c.StringOverflow <= 0 {
		return fmt.Errorf("vmconfig: StringOverflow must be positive")
	}
	if c.GPRegisters <= 0 || c.FPRegisters <= 0 {
		return fmt.Errorf("vmconfig: register class sizes must be positive")
	}
	if c.ABIVersion != "" && !semver.IsValid(c.ABIVersion) {
		return fmt.Errorf("vmconfig: ABIVersion %q is not a valid semver string", c.ABIVersion)
	}
	return nil
}
