package types

const (
	// AnonSetTreeMaxLevels is the maximum number of levels of an anonymity set
	// merkle tree.
	AnonSetTreeMaxLevels = 160
	// AnonSetKeyMaxLen is the maximum length of an anonymity set key in bytes.
	AnonSetKeyMaxLen = AnonSetTreeMaxLevels / 8
	// FieldElementSize is the size in bytes of a serialized BN254 scalar.
	FieldElementSize = 32
)
