//go:build purego

package recon

// purego builds keep to the reference kernel.
var defaultKernel = ScalarKernel
