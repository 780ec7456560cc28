package meta

import "fmt"

// Well-known metadata keys. Most are scalar; the Cal* keys are templated per
// instrument function number via CalFunctionKey/CalModificationKey.
const (
	KeyVersion       = "Version"
	KeyConvertDate   = "ConvertDate"
	KeyConvertTime   = "ConvertTime"
	KeyCompileTime   = "CompileTime"
	KeyRepoBranch    = "RepoBranch"
	KeyRepoVersion   = "RepoVersion"
	KeyCompressionInfo = "CompressionInfo"
)

// CalFunctionKey returns the metadata key for instrument function n's
// primary calibration polynomial, e.g. "Cal Function 1".
func CalFunctionKey(n int) string {
	return fmt.Sprintf("Cal Function %d", n)
}

// CalModificationKey returns the metadata key for instrument function n's
// calibration-modification polynomial, e.g. "Cal Modification 1".
func CalModificationKey(n int) string {
	return fmt.Sprintf("Cal Modification %d", n)
}
