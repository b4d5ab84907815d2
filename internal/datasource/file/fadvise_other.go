//go:build !linux

package file

import "os"

func adviseSequential(*os.File) {}

func adviseDone(*os.File) {}
