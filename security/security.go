package security

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfrename/ir/raw"
)

// ErrInvalidPassword reports that neither the user nor the owner password
// matched the document's password entries.
var ErrInvalidPassword = errors.New("invalid password")

// DataClass identifies the kind of payload being decrypted. Strings and
// streams may use different crypt filters, and metadata streams may be
// exempt from encryption entirely.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

// Handler decrypts protected document content after authentication.
type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Permissions() raw.Permissions
	EncryptMetadata() bool
}

type HandlerBuilder struct {
	encryptDict raw.Dictionary
	trailer     raw.Dictionary
	fileID      []byte
}

func (b *HandlerBuilder) WithEncryptDict(d raw.Dictionary) *HandlerBuilder {
	b.encryptDict = d
	return b
}
func (b *HandlerBuilder) WithTrailer(d raw.Dictionary) *HandlerBuilder { b.trailer = d; return b }
func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder         { b.fileID = id; return b }

// Build inspects the Encrypt dictionary and returns a handler for it. A nil
// dictionary yields the pass-through handler.
func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	if filter := nameVal(b.encryptDict, "Filter"); filter != "" && filter != "Standard" {
		return nil, fmt.Errorf("unsupported security handler %q", filter)
	}
	v := int64(1)
	if n, ok := numberVal(b.encryptDict, "V"); ok && n > 0 {
		v = n
	}
	if v > 5 {
		return nil, fmt.Errorf("encryption V=%d not supported", v)
	}
	r := int64(2)
	if n, ok := numberVal(b.encryptDict, "R"); ok {
		r = n
	}
	if r > 6 {
		return nil, fmt.Errorf("encryption R=%d not supported", r)
	}
	keyLen := 40
	if v >= 5 {
		keyLen = 256
	}
	if n, ok := numberVal(b.encryptDict, "Length"); ok && n > 0 && v < 5 {
		keyLen = int(n)
	}
	if keyLen%8 != 0 {
		return nil, errors.New("encryption key length must be a multiple of 8")
	}

	owner, _ := stringBytes(b.encryptDict, "O")
	user, _ := stringBytes(b.encryptDict, "U")
	oe, _ := stringBytes(b.encryptDict, "OE")
	ue, _ := stringBytes(b.encryptDict, "UE")
	perms, _ := stringBytes(b.encryptDict, "Perms")
	pVal, _ := numberVal(b.encryptDict, "P")

	id := b.fileID
	if len(id) == 0 && b.trailer != nil {
		if arrObj, ok := b.trailer.Get(raw.NameObj{Val: "ID"}); ok {
			if arr, ok := arrObj.(raw.Array); ok && arr.Len() > 0 {
				if item, ok := arr.Get(0); ok {
					if s, ok := item.(raw.String); ok {
						id = s.Value()
					}
				}
			}
		}
	}
	encryptMeta := true
	if v, ok := boolVal(b.encryptDict, "EncryptMetadata"); ok {
		encryptMeta = v
	}

	baseAlgo := algoRC4
	if v >= 4 {
		baseAlgo = algoAES
	}
	cryptFilters, err := parseCryptFilters(b.encryptDict, baseAlgo)
	if err != nil {
		return nil, err
	}
	streamAlgo, err := resolveCryptFilter(b.encryptDict, "StmF", baseAlgo, cryptFilters)
	if err != nil {
		return nil, err
	}
	stringAlgo, err := resolveCryptFilter(b.encryptDict, "StrF", baseAlgo, cryptFilters)
	if err != nil {
		return nil, err
	}
	return &standardHandler{
		v:            int(v),
		r:            int(r),
		lengthBits:   keyLen,
		owner:        owner,
		user:         user,
		oe:           oe,
		ue:           ue,
		permsEntry:   perms,
		p:            int32(pVal),
		fileID:       id,
		encryptMeta:  encryptMeta,
		useAES:       baseAlgo == algoAES,
		streamAlgo:   streamAlgo,
		stringAlgo:   stringAlgo,
		cryptFilters: cryptFilters,
	}, nil
}

type cryptAlgo int

const (
	algoUnset cryptAlgo = iota
	algoNone
	algoRC4
	algoAES
)

type standardHandler struct {
	key          []byte
	v            int
	r            int
	lengthBits   int
	owner        []byte
	user         []byte
	oe           []byte
	ue           []byte
	permsEntry   []byte
	p            int32
	fileID       []byte
	encryptMeta  bool
	authed       bool
	useAES       bool
	streamAlgo   cryptAlgo
	stringAlgo   cryptAlgo
	cryptFilters map[string]cryptAlgo
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

// Authenticate derives the file key from password, validating it against
// the U entry (and falling back to the owner path) where the revision
// allows validation.
func (h *standardHandler) Authenticate(password string) error {
	if h.r >= 5 {
		if err := h.authenticateAES256([]byte(password)); err != nil {
			return err
		}
		h.authed = true
		return nil
	}
	key, err := deriveKey([]byte(password), h.owner, h.p, h.fileID, h.lengthBits/8, h.r, h.encryptMeta)
	if err != nil {
		return err
	}
	if h.r <= 3 && !h.useAES {
		if !checkUserPassword(key, h.user, h.fileID, h.r) {
			okey, ok := h.ownerDerivedKey([]byte(password))
			if !ok {
				return ErrInvalidPassword
			}
			key = okey
		}
	}
	h.key = key
	h.authed = true
	return nil
}

// ownerDerivedKey runs the owner-password path for classic revisions: the
// O entry decrypts to the padded user password, which then authenticates
// normally.
func (h *standardHandler) ownerDerivedKey(pwd []byte) ([]byte, bool) {
	if len(h.owner) < 32 {
		return nil, false
	}
	userPwd, err := recoverUserPassword(pwd, h.owner, h.lengthBits/8, h.r)
	if err != nil {
		return nil, false
	}
	key, err := deriveKey(userPwd, h.owner, h.p, h.fileID, h.lengthBits/8, h.r, h.encryptMeta)
	if err != nil {
		return nil, false
	}
	if !checkUserPassword(key, h.user, h.fileID, h.r) {
		return nil, false
	}
	return key, true
}

func (h *standardHandler) authenticateAES256(pwd []byte) error {
	if len(h.user) >= 48 && len(h.ue) >= 32 {
		if key, ok, err := deriveAES256User(pwd, h.user, h.ue, h.r); err == nil && ok {
			h.key = key
			h.permsFromEntry()
			return nil
		}
	}
	if len(h.owner) >= 48 && len(h.oe) >= 32 && len(h.user) >= 48 {
		if key, ok, err := deriveAES256Owner(pwd, h.owner, h.oe, h.user, h.r); err == nil && ok {
			h.key = key
			h.permsFromEntry()
			return nil
		}
	}
	return ErrInvalidPassword
}

// permsFromEntry recovers the permission flags from the encrypted Perms
// entry when the plain P value is absent.
func (h *standardHandler) permsFromEntry() {
	if h.key == nil || h.p != 0 || len(h.permsEntry) == 0 {
		return
	}
	if p, err := decryptPermsAES256(h.key, h.permsEntry); err == nil {
		h.p = p
	}
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.DecryptWithFilter(objNum, gen, data, class, "")
}

func (h *standardHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if !h.authed {
		if err := h.Authenticate(""); err != nil {
			return nil, err
		}
	}
	if class == DataClassMetadataStream && !h.encryptMeta {
		return data, nil
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) pickAlgo(class DataClass) cryptAlgo {
	switch class {
	case DataClassString:
		if h.stringAlgo != algoUnset {
			return h.stringAlgo
		}
	case DataClassStream, DataClassMetadataStream:
		if h.streamAlgo != algoUnset {
			return h.streamAlgo
		}
	}
	if h.useAES {
		return algoAES
	}
	return algoRC4
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	if filter == "Identity" {
		return algoNone, nil
	}
	if filter == "" {
		return h.pickAlgo(class), nil
	}
	if algo, ok := h.cryptFilters[filter]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", filter)
}

func (h *standardHandler) Permissions() raw.Permissions {
	return raw.Permissions{
		Print:             h.p&0x4 != 0,
		Modify:            h.p&0x8 != 0,
		Copy:              h.p&0x10 != 0,
		ModifyAnnotations: h.p&0x20 != 0,
		FillForms:         h.p&0x100 != 0,
		ExtractAccessible: h.p&0x200 != 0,
		Assemble:          h.p&0x400 != 0,
		PrintHighQuality:  h.p&0x800 != 0,
	}
}

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool                  { return false }
func (noEncryptionHandler) Authenticate(password string) error { return nil }
func (noEncryptionHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Permissions() raw.Permissions {
	return raw.Permissions{
		Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true,
	}
}
func (noEncryptionHandler) EncryptMetadata() bool { return false }

// NoopHandler returns the reusable pass-through handler for unencrypted
// documents.
func NoopHandler() Handler { return noEncryptionHandler{} }
