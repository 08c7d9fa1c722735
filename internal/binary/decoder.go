package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

// Section ids as they appear on the wire, matching wasm.SectionID's
// numbering exactly: custom sections are 0, the tag section introduced by
// the exception-handling proposal is the highest at 13.
const (
	sectionCustom    = 0x00
	sectionType      = 0x01
	sectionImport    = 0x02
	sectionFunction  = 0x03
	sectionTable     = 0x04
	sectionMemory    = 0x05
	sectionGlobal    = 0x06
	sectionExport    = 0x07
	sectionStart     = 0x08
	sectionElement   = 0x09
	sectionCode      = 0x0a
	sectionData      = 0x0b
	sectionDataCount = 0x0c
	sectionTag       = 0x0d
)

// DecodeModule consumes data as a single WebAssembly binary module: the
// magic number and version, then each section in turn, dispatching its
// entries into mv per §6's payload contract. It never seeks backward and
// never mutates data. On success it returns the code section's bodies as
// function-index-ordered tasks, ready for the caller's parallel validation
// pool (§5); mv itself has already frozen into its read-only snapshot by
// the time this returns.
func DecodeModule(data []byte, mv *wasm.ModuleValidator) ([]wasm.FuncBody, error) {
	r := newByteReader(data)
	if err := decodeHeader(r); err != nil {
		return nil, err
	}

	var tasks []wasm.FuncBody
	for r.pos < len(r.data) {
		offset := r.offset()
		id, err := r.ReadByte()
		if err != nil {
			return nil, malformed(offset, "section id: %v", err)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, malformed(r.offset(), "section size: %v", err)
		}
		start := r.pos
		end := start + int(size)
		if end > len(r.data) {
			return nil, malformed(offset, "section %s declares %d bytes, which overruns the module", wasm.SectionIDName(wasm.SectionID(id)), size)
		}

		switch id {
		case sectionCustom:
			if err := mv.EnterSection(wasm.SectionIDCustom, offset); err != nil {
				return nil, err
			}
			r.pos = end // the core never interprets custom section contents.
		case sectionType:
			if err := mv.EnterSection(wasm.SectionIDType, offset); err != nil {
				return nil, err
			}
			if err := decodeTypeSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionImport:
			if err := mv.EnterSection(wasm.SectionIDImport, offset); err != nil {
				return nil, err
			}
			if err := decodeImportSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionFunction:
			if err := mv.EnterSection(wasm.SectionIDFunction, offset); err != nil {
				return nil, err
			}
			if err := decodeFunctionSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionTable:
			if err := mv.EnterSection(wasm.SectionIDTable, offset); err != nil {
				return nil, err
			}
			if err := decodeTableSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionMemory:
			if err := mv.EnterSection(wasm.SectionIDMemory, offset); err != nil {
				return nil, err
			}
			if err := decodeMemorySection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if err := mv.EnterSection(wasm.SectionIDGlobal, offset); err != nil {
				return nil, err
			}
			if err := decodeGlobalSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := mv.EnterSection(wasm.SectionIDExport, offset); err != nil {
				return nil, err
			}
			if err := decodeExportSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionStart:
			if err := mv.EnterSection(wasm.SectionIDStart, offset); err != nil {
				return nil, err
			}
			if err := decodeStartSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionElement:
			if err := mv.EnterSection(wasm.SectionIDElement, offset); err != nil {
				return nil, err
			}
			if err := decodeElementSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionDataCount:
			if err := mv.EnterSection(wasm.SectionIDDataCount, offset); err != nil {
				return nil, err
			}
			if err := decodeDataCountSection(r, mv.Module()); err != nil {
				return nil, err
			}
		case sectionCode:
			entries, err := decodeCodeSection(r, mv, offset)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, entries...)
		case sectionData:
			if err := mv.EnterSection(wasm.SectionIDData, offset); err != nil {
				return nil, err
			}
			if err := decodeDataSection(r, mv.DataModule()); err != nil {
				return nil, err
			}
		case sectionTag:
			if err := mv.EnterSection(wasm.SectionIDTag, offset); err != nil {
				return nil, err
			}
			if err := decodeTagSection(r, mv.Module()); err != nil {
				return nil, err
			}
		default:
			return nil, malformed(offset, "unknown section id: %#x", id)
		}

		if r.pos != end {
			return nil, malformed(offset, "section %s declared %d bytes but consumed %d", wasm.SectionIDName(wasm.SectionID(id)), size, r.pos-start)
		}
	}

	if _, err := mv.End(r.offset()); err != nil {
		return nil, err
	}
	return tasks, nil
}

func decodeHeader(r *byteReader) error {
	magic, err := r.readBytes(4)
	if err != nil || magic[0] != wasmMagic[0] || magic[1] != wasmMagic[1] || magic[2] != wasmMagic[2] || magic[3] != wasmMagic[3] {
		return malformed(0, "invalid magic number")
	}
	versionBytes, err := r.readBytes(4)
	if err != nil {
		return malformed(4, "version: %v", err)
	}
	version := uint32(versionBytes[0]) | uint32(versionBytes[1])<<8 | uint32(versionBytes[2])<<16 | uint32(versionBytes[3])<<24
	if version != wasmVersion {
		return malformed(4, "unsupported version: %d", version)
	}
	return nil
}

// decodeCodeSection decodes the code section's entry count as the
// CodeSectionStart payload, then each function body as a CodeSectionEntry
// payload, per §6's dispatch table.
func decodeCodeSection(r *byteReader, mv *wasm.ModuleValidator, sectionOffset int) ([]wasm.FuncBody, error) {
	offset := r.offset()
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(offset, "code section count: %v", err)
	}
	if _, err := mv.CodeSectionStart(int(count), sectionOffset); err != nil {
		return nil, err
	}
	tasks := make([]wasm.FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		bodyOffset := r.offset()
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, malformed(bodyOffset, "function body size: %v", err)
		}
		body, err := r.readBytes(int(size))
		if err != nil {
			return nil, malformed(r.offset(), "function body: %v", err)
		}
		tasks = append(tasks, mv.CodeSectionEntry(body))
	}
	return tasks, nil
}
