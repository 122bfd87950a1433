package igrf

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed data/igrf13.txt
var bundledTable []byte

var (
	bundledOnce  sync.Once
	bundledModel *Model
	bundledErr   error
)

// Bundled returns the built-in model: IGRF-13 to degree 13, with epochs
// 2015.0 and 2020.0 and secular variation to 2025.0. Tables with earlier
// epochs can be read with Load.
func Bundled() (*Model, error) {
	bundledOnce.Do(func() {
		bundledModel, bundledErr = Load(bytes.NewReader(bundledTable))
	})
	return bundledModel, bundledErr
}
