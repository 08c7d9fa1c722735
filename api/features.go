package api

import (
	"fmt"
	"sort"
)

// CoreFeatures is a bit flag of WebAssembly Core specification features. Unless you are using wazero for testing
// specification conformance, you will probably only use CoreFeaturesV1 or CoreFeaturesV2.
//
// Constants existing or defined in the future are only added when the proposal reached "Phase 4" of the process
// standardized by https://github.com/WebAssembly/meetings/blob/main/process/phases.md
//
// # Notes
//
//   - Proposals change between each "Phase 4" release, so please refer to the correct spec version when interpreting
//     the below. For example, reference-types is used in the 2.0 (20220419) release, but had a different opcode in
//     an intermediate draft.
//   - No feature is enabled by default, to best detect mismatch between a module and the runtime's configuration.
//   - A bitset is safe to encode: unlike a byte array, it doesn't require a length field.
type CoreFeatures uint64

// String implements fmt.Stringer by returning each enabled feature, sorted
// lexicographically and joined with "|".
func (f CoreFeatures) String() string {
	var names []string
	for i := 0; i <= 63; i++ {
		target := CoreFeatures(1) << i
		if f&target == 0 {
			continue
		}
		if definition, ok := coreFeatureStrings[target]; ok {
			names = append(names, definition)
		}
	}
	sort.Strings(names)

	var builder []byte
	for _, n := range names {
		if len(builder) > 0 {
			builder = append(builder, '|')
		}
		builder = append(builder, n...)
	}
	return string(builder)
}

// SetEnabled modifies this CoreFeatures to enable or disable the named feature.
func (f CoreFeatures) SetEnabled(feature CoreFeatures, enabled bool) CoreFeatures {
	if enabled {
		return f | feature
	}
	return f &^ feature
}

// IsEnabled returns true if the feature (should be only 1 bit) is set.
func (f CoreFeatures) IsEnabled(feature CoreFeatures) bool {
	return f&feature != 0
}

// RequireEnabled returns an error if the feature (should be only 1 bit) is not set.
func (f CoreFeatures) RequireEnabled(feature CoreFeatures) error {
	if f&feature == 0 {
		return fmt.Errorf("feature %q is disabled", coreFeatureStrings[feature])
	}
	return nil
}

const (
	// CoreFeatureMutableGlobal allows globals to be imported and exported with the mutable property.
	//
	// See https://github.com/WebAssembly/mutable-global
	CoreFeatureMutableGlobal CoreFeatures = 1 << iota

	// CoreFeatureSignExtensionOps decodes sign-extension instructions reported as unknown opcodes otherwise.
	//
	// See https://github.com/WebAssembly/sign-extension-ops
	CoreFeatureSignExtensionOps

	// CoreFeatureMultiValue enables multiple result types on the block/if/loop types and functions.
	//
	// See https://github.com/WebAssembly/multi-value
	CoreFeatureMultiValue

	// CoreFeatureNonTrappingFloatToIntConversion adds instructions that can truncate floating point to integer
	// without trapping on overflow or NaN.
	//
	// See https://github.com/WebAssembly/nontrapping-float-to-int-conversions
	CoreFeatureNonTrappingFloatToIntConversion

	// CoreFeatureBulkMemoryOperations enables bulk memory/table instructions and the passive/declarative segment
	// concepts they depend on.
	//
	// See https://github.com/WebAssembly/bulk-memory-operations
	CoreFeatureBulkMemoryOperations

	// CoreFeatureReferenceTypes enables funcref/externref value types, table growth/fill/copy, and related
	// reference instructions.
	//
	// See https://github.com/WebAssembly/reference-types
	CoreFeatureReferenceTypes

	// CoreFeatureSIMD enables the v128 value type and vector instructions.
	//
	// See https://github.com/webassembly/simd
	CoreFeatureSIMD

	// CoreFeatureExtendedConst allows more operators (i32.add, i32.sub, i32.mul and their 64-bit equivalents) in
	// constant expressions.
	//
	// See https://github.com/WebAssembly/extended-const
	CoreFeatureExtendedConst

	// CoreFeatureMultiMemory allows a module to define more than one memory.
	//
	// See https://github.com/WebAssembly/multi-memory
	CoreFeatureMultiMemory

	// CoreFeatureExceptionHandling enables tags, try/catch style instructions and the tag section.
	//
	// See https://github.com/WebAssembly/exception-handling
	CoreFeatureExceptionHandling

	// CoreFeatureFunctionReferences enables typed function references, including non-nullable reference types.
	//
	// See https://github.com/WebAssembly/function-references
	CoreFeatureFunctionReferences

	// CoreFeatureGC enables struct and array heap types and their instructions, building on CoreFeatureFunctionReferences.
	//
	// See https://github.com/WebAssembly/gc
	CoreFeatureGC

	// CoreFeatureTailCall enables the return_call family of instructions.
	//
	// See https://github.com/WebAssembly/tail-call
	CoreFeatureTailCall

	// CoreFeatureCustomPageSizes allows a memory to declare a non-default page size.
	//
	// See https://github.com/WebAssembly/custom-page-sizes
	CoreFeatureCustomPageSizes

	// CoreFeatureSharedEverythingThreads enables shared memories, atomics, and the shared attribute on types,
	// tables, and globals.
	//
	// See https://github.com/WebAssembly/shared-everything-threads
	CoreFeatureSharedEverythingThreads
)

var coreFeatureStrings = map[CoreFeatures]string{
	CoreFeatureMutableGlobal:                   "mutable-global",
	CoreFeatureSignExtensionOps:                "sign-extension-ops",
	CoreFeatureMultiValue:                      "multi-value",
	CoreFeatureNonTrappingFloatToIntConversion: "nontrapping-float-to-int-conversion",
	CoreFeatureBulkMemoryOperations:            "bulk-memory-operations",
	CoreFeatureReferenceTypes:                  "reference-types",
	CoreFeatureSIMD:                            "simd",
	CoreFeatureExtendedConst:                   "extended-const",
	CoreFeatureMultiMemory:                     "multi-memory",
	CoreFeatureExceptionHandling:                "exception-handling",
	CoreFeatureFunctionReferences:              "function-references",
	CoreFeatureGC:                              "gc",
	CoreFeatureTailCall:                        "tail-call",
	CoreFeatureCustomPageSizes:                 "custom-page-sizes",
	CoreFeatureSharedEverythingThreads:         "shared-everything-threads",
}

// CoreFeaturesV1 are features included in the WebAssembly Core Specification 1.0.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/
const CoreFeaturesV1 = CoreFeatureMutableGlobal

// CoreFeaturesV2 are features included in the WebAssembly Core Specification 2.0.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/
const CoreFeaturesV2 = CoreFeaturesV1 |
	CoreFeatureSignExtensionOps |
	CoreFeatureMultiValue |
	CoreFeatureNonTrappingFloatToIntConversion |
	CoreFeatureBulkMemoryOperations |
	CoreFeatureReferenceTypes |
	CoreFeatureSIMD

// CoreFeaturesV3 additionally enables the proposals that reached "Phase 4" after the 2.0 release: extended-const,
// multi-memory, exception-handling, function-references, tail-call and custom-page-sizes.
const CoreFeaturesV3 = CoreFeaturesV2 |
	CoreFeatureExtendedConst |
	CoreFeatureMultiMemory |
	CoreFeatureExceptionHandling |
	CoreFeatureFunctionReferences |
	CoreFeatureTailCall |
	CoreFeatureCustomPageSizes

// CoreFeaturesGC additionally enables the garbage-collection proposal (and, transitively, shared-everything-threads
// is left for the caller to opt into separately, as it changes sharedness semantics across the whole type system).
const CoreFeaturesGC = CoreFeaturesV3 | CoreFeatureGC
