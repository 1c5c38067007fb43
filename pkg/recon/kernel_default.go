//go:build !purego

package recon

var defaultKernel = RowKernel
