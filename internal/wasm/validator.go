package wasm

import (
	"github.com/sirupsen/logrus"

	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/types"
)

// ModuleValidator is the top-level, section-driven state machine described
// by §4.5: it holds the current section-ordering phase, the feature set,
// and the module index spaces being built, and routes each decoded payload
// either to a ModuleIndexSpaces mutation or to the freeze/code-body
// handoff. The binary decoder owns parsing; ModuleValidator owns ordering
// and the builder-to-snapshot transition.
type ModuleValidator struct {
	Features api.CoreFeatures

	module *MaybeOwned[ModuleIndexSpaces]
	phase  Phase

	nextFuncIndex Index
	resources     *ValidatorResources

	logger *logrus.Logger
}

// SetLogger installs a logger that EnterSection and CodeSectionStart use to
// emit Debug-level entries at phase transitions. nil (the default) disables
// this, including the cost of building the structured fields.
func (mv *ModuleValidator) SetLogger(logger *logrus.Logger) {
	mv.logger = logger
}

// NewModuleValidator returns a ModuleValidator ready to absorb section
// payloads in order, starting from an empty ModuleIndexSpaces.
func NewModuleValidator(features api.CoreFeatures, limits Limits) *ModuleValidator {
	return &ModuleValidator{
		Features: features,
		module:   NewOwned(NewModuleIndexSpaces(features, limits)),
		phase:    PhaseStart,
	}
}

// sectionPhase maps a section id to its position in the ordering state
// machine. Every non-custom section occupies exactly one phase; custom
// sections are exempt and handled directly by EnterSection.
func sectionPhase(id SectionID) (Phase, bool) {
	switch id {
	case SectionIDType:
		return PhaseType, true
	case SectionIDImport:
		return PhaseImport, true
	case SectionIDFunction:
		return PhaseFunction, true
	case SectionIDTable:
		return PhaseTable, true
	case SectionIDMemory:
		return PhaseMemory, true
	case SectionIDTag:
		return PhaseTag, true
	case SectionIDGlobal:
		return PhaseGlobal, true
	case SectionIDExport:
		return PhaseExport, true
	case SectionIDStart:
		return PhaseStartSection, true
	case SectionIDElement:
		return PhaseElement, true
	case SectionIDDataCount:
		return PhaseDataCount, true
	case SectionIDCode:
		return PhaseCode, true
	case SectionIDData:
		return PhaseData, true
	}
	return PhaseStart, false
}

// EnterSection validates that id is allowed to appear next in the binary
// and advances the state machine to its phase. Custom sections are always
// admissible and never change phase, matching §4.3's "custom sections are
// allowed anywhere" rule. Any other section out of its designated order, or
// repeated, fails with MisplacedSection.
func (mv *ModuleValidator) EnterSection(id SectionID, offset int) error {
	if id == SectionIDCustom {
		return nil
	}
	target, ok := sectionPhase(id)
	if !ok {
		return fmtOffset(offset, "misplaced section: unrecognized section id %d", id)
	}
	switch {
	case target == mv.phase:
		return fmtOffset(offset, "misplaced section: duplicate %s section", SectionIDName(id))
	case target < mv.phase:
		return fmtOffset(offset, "misplaced section: %s section out of order", SectionIDName(id))
	}
	mv.phase = target
	if mv.logger != nil {
		mv.logger.WithFields(logrus.Fields{"section": SectionIDName(id), "offset": offset}).Debug("section entered")
	}
	return nil
}

// Module returns the exclusive mutable builder view. Valid only before the
// freeze point; calling it afterward is a programmer error (see
// MaybeOwned.AssertMut).
func (mv *ModuleValidator) Module() *ModuleIndexSpaces {
	return mv.module.AssertMut()
}

// DataModule returns the ModuleIndexSpaces for data-section validation.
// Unlike Module, it is valid both before and after the freeze point:
// AddDataSegment only appends to DataSegments, a field ValidatorResources
// never aliases, so mutating it after Share has handed out concurrent
// readers of the frozen spaces is still safe.
func (mv *ModuleValidator) DataModule() *ModuleIndexSpaces {
	return mv.module.Deref()
}

// CodeSectionStart handles the CodeSectionStart payload (§6): it enters the
// code phase, asserts the declared entry count against the function index
// space, freezes the module, and returns the ValidatorResources snapshot
// every subsequent function-body task will carry.
func (mv *ModuleValidator) CodeSectionStart(declaredCount int, offset int) (*ValidatorResources, error) {
	if err := mv.EnterSection(SectionIDCode, offset); err != nil {
		return nil, err
	}
	m := mv.module.AssertMut()
	if err := m.Freeze(declaredCount, offset); err != nil {
		return nil, err
	}
	mv.module.Share()
	mv.nextFuncIndex = m.NumImportedFunctions
	mv.resources = NewValidatorResources(m)
	if mv.logger != nil {
		mv.logger.WithFields(logrus.Fields{"offset": offset, "functions": declaredCount}).Debug("freeze point reached")
	}
	return mv.resources, nil
}

// CodeSectionEntry handles one CodeSectionEntry payload, returning the
// function-body task for it and advancing the code-section cursor. The
// caller must have already observed CodeSectionStart.
func (mv *ModuleValidator) CodeSectionEntry(body []byte) FuncBody {
	idx := mv.nextFuncIndex
	mv.nextFuncIndex++
	return FuncBody{Index: idx, Bytes: body}
}

// Resources returns the ValidatorResources snapshot produced at the freeze
// point, or nil before the module has frozen. CodeSectionStart produces it;
// for a module with no code section, End does.
func (mv *ModuleValidator) Resources() *ValidatorResources {
	return mv.resources
}

// End handles the End payload: modules that never reach a code section
// (no functions declared) still freeze here, with a declared count of
// zero, so §3's "once the code section has begun" invariant degenerates
// gracefully to "once validation completes" for them. It returns the
// module's TypeStore, the snapshot a caller may want to retain once
// validation finishes.
func (mv *ModuleValidator) End(offset int) (*types.TypeStore, error) {
	if mv.resources == nil {
		m := mv.module.AssertMut()
		if err := m.Freeze(0, offset); err != nil {
			return nil, err
		}
		mv.module.Share()
		mv.resources = NewValidatorResources(m)
	}
	mv.phase = PhaseEnd
	return mv.module.Deref().Store, nil
}

// Phase reports the state machine's current phase, mostly useful for tests
// and logging.
func (mv *ModuleValidator) Phase() Phase { return mv.phase }
