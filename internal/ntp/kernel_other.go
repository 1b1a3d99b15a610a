//go:build !linux

package ntp

func readTimex() (*KernelTimex, error) {
	return nil, ErrKernelUnsupported
}
