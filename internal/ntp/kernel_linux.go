//go:build linux

package ntp

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

func readTimex() (*KernelTimex, error) {
	// Modes 0 only reads
	var tx unix.Timex
	state, err := unix.Adjtimex(&tx)
	if err != nil {
		return nil, fmt.Errorf("adjtimex syscall failed: %w", err)
	}

	return &KernelTimex{
		Offset:     kernelOffset(int64(tx.Offset), tx.Status),
		Frequency:  int64(tx.Freq),
		MaxError:   time.Duration(tx.Maxerror) * time.Microsecond,
		EstError:   time.Duration(tx.Esterror) * time.Microsecond,
		Status:     tx.Status,
		Constant:   int64(tx.Constant),
		Precision:  time.Duration(tx.Precision) * time.Microsecond,
		Tick:       int64(tx.Tick),
		State:      state,
		SyncStatus: statusString(tx.Status, state),
	}, nil
}
