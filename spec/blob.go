/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package spec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/spec/specfb"
)

const (
	// Magic opens every blob.
	Magic = "DFXB"
	// FormatVersion is the only blob format version this loader accepts.
	FormatVersion uint16 = 1
	// HeaderSize is the fixed size of the blob header in bytes.
	HeaderSize = 12
)

var (
	// ErrBadMagic is returned when a blob does not start with Magic.
	ErrBadMagic = errors.New("defx(spec): bad magic")
	// ErrVersion is returned for a blob written in another format version.
	ErrVersion = errors.New("defx(spec): unsupported format version")
	// ErrDomain is returned when the blob's domain tag is not the expected one.
	ErrDomain = errors.New("defx(spec): domain mismatch")
	// ErrTruncated is returned when the blob is shorter or longer than its header claims.
	ErrTruncated = errors.New("defx(spec): truncated blob")
	// ErrMalformed is returned for a payload that cannot be decoded.
	ErrMalformed = errors.New("defx(spec): malformed payload")
)

// DecodeError reports a blob that failed to decode.
// It always names the blob and the domain it was decoded for.
type DecodeError struct {
	Blob   string
	Domain apis.Domain
	Err    error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: blob %q (domain %s)", e.Err, e.Blob, e.Domain)
	}
	return fmt.Sprintf("%v: blob %q (domain %s): %s", e.Err, e.Blob, e.Domain, e.Detail)
}

// Unwrap returns the sentinel describing the failure class.
func (e *DecodeError) Unwrap() error { return e.Err }

// Header is the decoded fixed-size blob header.
type Header struct {
	Version uint16
	Domain  apis.Domain
	Flags   uint8
	Length  uint32
}

// ReadHeader parses and validates the blob header without touching the
// payload.
func ReadHeader(name string, blob []byte) (Header, error) {
	if len(blob) < HeaderSize {
		return Header{}, &DecodeError{Blob: name, Err: ErrTruncated,
			Detail: fmt.Sprintf("%d bytes, header needs %d", len(blob), HeaderSize)}
	}
	if string(blob[:4]) != Magic {
		return Header{}, &DecodeError{Blob: name, Err: ErrBadMagic, Detail: fmt.Sprintf("%q", blob[:4])}
	}
	h := Header{
		Version: binary.LittleEndian.Uint16(blob[4:6]),
		Domain:  apis.Domain(blob[6]),
		Flags:   blob[7],
		Length:  binary.LittleEndian.Uint32(blob[8:12]),
	}
	if h.Version != FormatVersion {
		return h, &DecodeError{Blob: name, Domain: h.Domain, Err: ErrVersion,
			Detail: fmt.Sprintf("got %d, want %d", h.Version, FormatVersion)}
	}
	if h.Flags != 0 {
		return h, &DecodeError{Blob: name, Domain: h.Domain, Err: ErrMalformed,
			Detail: fmt.Sprintf("reserved flags %#x", h.Flags)}
	}
	if uint64(len(blob)-HeaderSize) != uint64(h.Length) {
		return h, &DecodeError{Blob: name, Domain: h.Domain, Err: ErrTruncated,
			Detail: fmt.Sprintf("payload is %d bytes, header says %d", len(blob)-HeaderSize, h.Length)}
	}
	return h, nil
}

// Decode validates the header of blob, checks that it is tagged with the
// want domain, and decodes every record. It returns either all records or
// a *DecodeError, never a partial result.
func Decode(name string, want apis.Domain, blob []byte) ([]Spec, error) {
	h, err := ReadHeader(name, blob)
	if err != nil {
		return nil, err
	}
	if h.Domain != want {
		return nil, &DecodeError{Blob: name, Domain: want, Err: ErrDomain,
			Detail: fmt.Sprintf("blob is tagged %s", h.Domain)}
	}
	return decodePayload(name, want, blob[HeaderSize:])
}

func decodePayload(name string, d apis.Domain, payload []byte) (out []Spec, err error) {
	if len(payload) < flatbuffers.SizeUOffsetT {
		return nil, &DecodeError{Blob: name, Domain: d, Err: ErrMalformed, Detail: "empty payload"}
	}
	// The flatbuffers runtime has no verifier; out-of-range offsets surface
	// as index panics.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &DecodeError{Blob: name, Domain: d, Err: ErrMalformed, Detail: fmt.Sprint(r)}
		}
	}()

	root := specfb.GetRootAsBlob(payload, 0)
	if got := apis.Domain(root.Domain()); got != d {
		return nil, &DecodeError{Blob: name, Domain: d, Err: ErrDomain,
			Detail: fmt.Sprintf("payload is tagged %s", got)}
	}

	n, err := vectorLen(root.Table(), slotBlobSpecs)
	if err != nil {
		return nil, &DecodeError{Blob: name, Domain: d, Err: ErrMalformed, Detail: "specs: " + err.Error()}
	}
	out = make([]Spec, 0, n)
	rec := new(specfb.Spec)
	field := new(specfb.Field)
	for i := 0; i < n; i++ {
		if !root.Specs(rec, i) {
			return nil, &DecodeError{Blob: name, Domain: d, Err: ErrMalformed, Detail: fmt.Sprintf("record %d missing", i)}
		}
		s, err := decodeSpec(rec, field)
		if err != nil {
			return nil, &DecodeError{Blob: name, Domain: d, Err: ErrMalformed, Detail: fmt.Sprintf("record %d: %v", i, err)}
		}
		out = append(out, s)
	}
	return out, nil
}

// Vtable slots of the vectors whose lengths are checked before allocating.
const (
	slotBlobSpecs  flatbuffers.VOffsetT = 6
	slotSpecKeys   flatbuffers.VOffsetT = 12
	slotSpecFields flatbuffers.VOffsetT = 18
)

// vectorLen returns the length of the vector in slot of tab. The length is
// read from untrusted bytes, so it fails unless the vector's offset table
// fits in the buffer.
func vectorLen(tab flatbuffers.Table, slot flatbuffers.VOffsetT) (int, error) {
	o := flatbuffers.UOffsetT(tab.Offset(slot))
	if o == 0 {
		return 0, nil
	}
	start := uint64(tab.Vector(o))
	n := tab.VectorLen(o)
	size := uint64(len(tab.Bytes))
	if start > size || n < 0 || uint64(n) > (size-start)/flatbuffers.SizeUOffsetT {
		return 0, fmt.Errorf("vector of %d elements overruns the %d-byte payload", n, size)
	}
	return n, nil
}

func decodeSpec(rec *specfb.Spec, field *specfb.Field) (Spec, error) {
	s := Spec{Meta: Meta{
		ID:          string(rec.Id()),
		Name:        string(rec.Name()),
		Description: string(rec.Description()),
		Short:       string(rec.Short()),
		Priority:    rec.Priority(),
		Source:      apis.SourceRank(rec.Source()),
	}}
	if s.ID == "" {
		return Spec{}, errors.New("empty id")
	}
	if !s.Source.Valid() {
		return Spec{}, fmt.Errorf("%q: unknown source rank %d", s.ID, rec.Source())
	}
	nkeys, err := vectorLen(rec.Table(), slotSpecKeys)
	if err != nil {
		return Spec{}, fmt.Errorf("%q: keys: %w", s.ID, err)
	}
	nfields, err := vectorLen(rec.Table(), slotSpecFields)
	if err != nil {
		return Spec{}, fmt.Errorf("%q: fields: %w", s.ID, err)
	}
	if nkeys > 0 {
		s.Keys = make([]string, nkeys)
		for j := 0; j < nkeys; j++ {
			s.Keys[j] = string(rec.Keys(j))
		}
	}
	if nfields > 0 {
		s.Fields = make(map[string]string, nfields)
		for j := 0; j < nfields; j++ {
			rec.Fields(field, j)
			k := string(field.Key())
			if _, dup := s.Fields[k]; dup {
				return Spec{}, fmt.Errorf("%q: duplicate field %q", s.ID, k)
			}
			s.Fields[k] = string(field.Value())
		}
	}
	return s, nil
}

// Encode writes specs as a blob tagged with domain d. It stands in for the
// offline compiler in tests and tooling. Fields are written in key order so
// the output is deterministic.
func Encode(d apis.Domain, specs []Spec) ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("defx(spec): cannot encode for domain %s", d)
	}
	b := flatbuffers.NewBuilder(1024)

	offs := make([]flatbuffers.UOffsetT, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("defx(spec): record %d has an empty id", i)
		}
		offs[i] = encodeSpec(b, s)
	}
	specfb.BlobStartSpecsVector(b, len(offs))
	for i := len(offs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offs[i])
	}
	vec := b.EndVector(len(offs))

	specfb.BlobStart(b)
	specfb.BlobAddDomain(b, byte(d))
	specfb.BlobAddSpecs(b, vec)
	b.Finish(specfb.BlobEnd(b))
	payload := b.FinishedBytes()

	out := make([]byte, HeaderSize+len(payload))
	copy(out, Magic)
	binary.LittleEndian.PutUint16(out[4:6], FormatVersion)
	out[6] = byte(d)
	out[7] = 0
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// MustEncode is like Encode but panics on error. Use it for fixtures.
func MustEncode(d apis.Domain, specs []Spec) []byte {
	b, err := Encode(d, specs)
	if err != nil {
		panic(err)
	}
	return b
}

func encodeSpec(b *flatbuffers.Builder, s Spec) flatbuffers.UOffsetT {
	keys := make([]flatbuffers.UOffsetT, len(s.Keys))
	for i, k := range s.Keys {
		keys[i] = b.CreateString(k)
	}
	var keyVec flatbuffers.UOffsetT
	if len(keys) > 0 {
		specfb.SpecStartKeysVector(b, len(keys))
		for i := len(keys) - 1; i >= 0; i-- {
			b.PrependUOffsetT(keys[i])
		}
		keyVec = b.EndVector(len(keys))
	}

	names := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]flatbuffers.UOffsetT, len(names))
	for i, k := range names {
		key := b.CreateString(k)
		val := b.CreateString(s.Fields[k])
		specfb.FieldStart(b)
		specfb.FieldAddKey(b, key)
		specfb.FieldAddValue(b, val)
		fields[i] = specfb.FieldEnd(b)
	}
	var fieldVec flatbuffers.UOffsetT
	if len(fields) > 0 {
		specfb.SpecStartFieldsVector(b, len(fields))
		for i := len(fields) - 1; i >= 0; i-- {
			b.PrependUOffsetT(fields[i])
		}
		fieldVec = b.EndVector(len(fields))
	}

	id := b.CreateString(s.ID)
	var name, desc, short flatbuffers.UOffsetT
	if s.Name != "" {
		name = b.CreateString(s.Name)
	}
	if s.Description != "" {
		desc = b.CreateString(s.Description)
	}
	if s.Short != "" {
		short = b.CreateString(s.Short)
	}

	specfb.SpecStart(b)
	specfb.SpecAddId(b, id)
	if name != 0 {
		specfb.SpecAddName(b, name)
	}
	if desc != 0 {
		specfb.SpecAddDescription(b, desc)
	}
	if short != 0 {
		specfb.SpecAddShort(b, short)
	}
	if keyVec != 0 {
		specfb.SpecAddKeys(b, keyVec)
	}
	specfb.SpecAddPriority(b, s.Priority)
	specfb.SpecAddSource(b, byte(s.Source))
	if fieldVec != 0 {
		specfb.SpecAddFields(b, fieldVec)
	}
	return specfb.SpecEnd(b)
}
