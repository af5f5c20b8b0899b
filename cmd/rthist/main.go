// Command rthist computes intensity histograms of images on the GPU.
//
// Each image is uploaded as a BGRA8 render target and passed through the
// same bridge a renderer would use, so the command doubles as a smoke test
// for a machine's Vulkan setup.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
