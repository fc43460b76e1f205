package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wudi/pdfrename/ir/raw"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// deriveKey implements Algorithm 2 for revisions 2-4: MD5 over the padded
// password, O entry, P flags, file ID, plus the no-metadata marker for R>=4.
func deriveKey(pwd, owner []byte, pVal int32, fileID []byte, keyLenBytes int, r int, encryptMeta bool) ([]byte, error) {
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	data := make([]byte, 0, 32+len(owner)+8+len(fileID))
	data = append(data, padPassword(pwd)...)
	data = append(data, owner...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)
	if r >= 4 && !encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	}
	return key[:keyLenBytes], nil
}

// checkUserPassword validates a derived file key against the U entry:
// R2 compares RC4(key, padding), R>=3 compares the first 16 bytes of the
// iterated construction over MD5(padding + fileID).
func checkUserPassword(key []byte, userEntry []byte, fileID []byte, r int) bool {
	if len(userEntry) < 16 {
		return false
	}
	if r <= 2 {
		expect := rc4Simple(key, passwordPadding)
		return comparePrefix(expect[:16], userEntry)
	}
	h := md5.Sum(append(append([]byte{}, passwordPadding...), fileID...))
	val := h[:]
	for i := 0; i < 20; i++ {
		tmpKey := make([]byte, len(key))
		for j := range key {
			tmpKey[j] = key[j] ^ byte(i)
		}
		val = rc4Simple(tmpKey, val)
	}
	return comparePrefix(val[:16], userEntry)
}

// recoverUserPassword runs the classic owner path: hash the owner password
// into an RC4 key and peel the O entry back to the padded user password.
func recoverUserPassword(ownerPwd, ownerEntry []byte, keyLenBytes, r int) ([]byte, error) {
	if len(ownerEntry) < 32 {
		return nil, errors.New("owner entry too short")
	}
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	sum := md5.Sum(padPassword(ownerPwd))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	key = key[:keyLenBytes]

	userPwd := append([]byte{}, ownerEntry[:32]...)
	if r <= 2 {
		return rc4Simple(key, userPwd), nil
	}
	for i := 19; i >= 0; i-- {
		tmpKey := make([]byte, len(key))
		for j := range key {
			tmpKey[j] = key[j] ^ byte(i)
		}
		userPwd = rc4Simple(tmpKey, userPwd)
	}
	return userPwd, nil
}

func truncatePasswordRev6(pwd []byte) []byte {
	if len(pwd) > 127 {
		return pwd[:127]
	}
	return pwd
}

// hash2B implements the revision-dependent password hash of ISO 32000-2:
// plain SHA-256 for R5, the iterated SHA-256/384/512 construction for R6.
func hash2B(pwd, salt, extra []byte, r int) []byte {
	pwd = truncatePasswordRev6(pwd)
	sum := sha256.Sum256(concat(pwd, salt, extra))
	h := sum[:]
	if r < 6 {
		return h
	}
	for round := 0; ; round++ {
		block := make([]byte, 0, 64*(len(pwd)+64+len(extra)))
		for i := 0; i < 64; i++ {
			block = append(block, pwd...)
			block = append(block, h...)
			block = append(block, extra...)
		}
		enc, err := aesCBCEncryptNoPad(h[:16], h[16:32], block)
		if err != nil {
			return h
		}
		var mod int
		for _, b := range enc[:16] {
			mod += int(b)
		}
		switch mod % 3 {
		case 0:
			s := sha256.Sum256(enc)
			h = s[:]
		case 1:
			s := sha512.Sum384(enc)
			h = s[:]
		default:
			s := sha512.Sum512(enc)
			h = s[:]
		}
		if round >= 63 && int(enc[len(enc)-1]) <= round-32 {
			return h[:32]
		}
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// deriveAES256User validates the user password against U and unwraps the
// file key from UE. U is hash(32) + validation salt(8) + key salt(8).
func deriveAES256User(pwd, uEntry, ue []byte, r int) ([]byte, bool, error) {
	if len(uEntry) < 48 || len(ue) < 32 {
		return nil, false, errors.New("user entry too short")
	}
	validationSalt := uEntry[32:40]
	keySalt := uEntry[40:48]
	if !comparePrefix(hash2B(pwd, validationSalt, nil, r)[:32], uEntry[:32]) {
		return nil, false, nil
	}
	intermediate := hash2B(pwd, keySalt, nil, r)
	fileKey, err := aesCBCDecryptNoPad(intermediate[:32], make([]byte, aes.BlockSize), ue[:32])
	if err != nil {
		return nil, false, err
	}
	return fileKey, true, nil
}

// deriveAES256Owner is the owner variant; the first 48 bytes of U feed the
// hash as additional data.
func deriveAES256Owner(pwd, oEntry, oe, uEntry []byte, r int) ([]byte, bool, error) {
	if len(oEntry) < 48 || len(oe) < 32 || len(uEntry) < 48 {
		return nil, false, errors.New("owner entry too short")
	}
	validationSalt := oEntry[32:40]
	keySalt := oEntry[40:48]
	if !comparePrefix(hash2B(pwd, validationSalt, uEntry[:48], r)[:32], oEntry[:32]) {
		return nil, false, nil
	}
	intermediate := hash2B(pwd, keySalt, uEntry[:48], r)
	fileKey, err := aesCBCDecryptNoPad(intermediate[:32], make([]byte, aes.BlockSize), oe[:32])
	if err != nil {
		return nil, false, err
	}
	return fileKey, true, nil
}

func decryptPermsAES256(key, perms []byte) (int32, error) {
	if len(perms) != 16 {
		return 0, errors.New("perms entry must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, err
	}
	out := make([]byte, 16)
	block.Decrypt(out, perms)
	if string(out[9:12]) != "adb" {
		return 0, errors.New("perms entry failed validation")
	}
	return int32(binary.LittleEndian.Uint32(out[:4])), nil
}

func parseCryptFilters(dict raw.Dictionary, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	if dict == nil {
		return out, nil
	}
	cfObj, ok := dict.Get(raw.NameObj{Val: "CF"})
	if !ok {
		return out, nil
	}
	cfDict, ok := cfObj.(raw.Dictionary)
	if !ok {
		return nil, errors.New("CF must be a dictionary")
	}
	for _, key := range cfDict.Keys() {
		obj, _ := cfDict.Get(key)
		entry, ok := obj.(raw.Dictionary)
		if !ok {
			return nil, errors.New("crypt filter entry must be a dictionary")
		}
		algo := base
		switch nameVal(entry, "CFM") {
		case "":
		case "V2":
			algo = algoRC4
		case "AESV2", "AESV3":
			algo = algoAES
		case "None":
			algo = algoNone
		default:
			return nil, fmt.Errorf("unsupported crypt filter method %s", nameVal(entry, "CFM"))
		}
		out[key.Value()] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict raw.Dictionary, key string, base cryptAlgo, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name := nameVal(dict, key)
	switch name {
	case "":
		return base, nil
	case "Identity":
		return algoNone, nil
	case "StdCF", "Standard":
		if algo, ok := filters[name]; ok {
			return algo, nil
		}
		return base, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", name)
}

// objectKey derives the per-object key for classic revisions. R>=5 uses the
// file key directly.
func objectKey(fileKey []byte, objNum, gen int, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte{}, fileKey...)
	key = append(key,
		byte(objNum), byte(objNum>>8), byte(objNum>>16),
		byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func rc4Simple(key, data []byte) []byte {
	out, _ := rc4Crypt(key, data)
	return out
}

func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesDecrypt decrypts CBC data carrying its IV in the first block, stripping
// the trailing PKCS#7 padding.
func aesDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	out, err := aesCBCDecryptNoPad(key, data[:aes.BlockSize], data[aes.BlockSize:])
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

func aesCBCDecryptNoPad(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("aes data not a multiple of block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCEncryptNoPad(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("aes data not a multiple of block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func comparePrefix(a, b []byte) bool {
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func numberVal(dict raw.Dictionary, key string) (int64, bool) {
	if dict == nil {
		return 0, false
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if n, ok := v.(raw.Number); ok {
			return n.Int(), true
		}
	}
	return 0, false
}

func stringBytes(dict raw.Dictionary, key string) ([]byte, bool) {
	if dict == nil {
		return nil, false
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if s, ok := v.(raw.String); ok {
			return s.Value(), true
		}
	}
	return nil, false
}

func boolVal(dict raw.Dictionary, key string) (bool, bool) {
	if dict == nil {
		return false, false
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if b, ok := v.(raw.Boolean); ok {
			return b.Value(), true
		}
	}
	return false, false
}

func nameVal(dict raw.Dictionary, key string) string {
	if dict == nil {
		return ""
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if n, ok := v.(raw.Name); ok {
			return n.Value()
		}
	}
	return ""
}
