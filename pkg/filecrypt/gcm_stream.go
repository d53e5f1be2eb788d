package filecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

// gcmStream is AES-GCM split into its two halves so a file can be processed in chunks:
// the counter mode keystream and the GHASH authenticator. The output is identical to
// cipher.NewGCMWithNonceSize(block, len(iv)).Seal with no additional data.
type gcmStream struct {
	block cipher.Block
	h     [2]uint64
	j0    [16]byte

	ctr    [16]byte
	ks     [16]byte
	ksUsed int

	y    [2]uint64
	buf  [16]byte
	bufN int
	n    uint64
}

func newGCMStream(key, iv []byte) (*gcmStream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	g := &gcmStream{block: block, ksUsed: 16}

	var hb [16]byte
	block.Encrypt(hb[:], hb[:])
	g.h = [2]uint64{binary.BigEndian.Uint64(hb[:8]), binary.BigEndian.Uint64(hb[8:])}

	if len(iv) == 12 {
		copy(g.j0[:], iv)
		g.j0[15] = 1
	} else {
		// J0 = GHASH(IV || pad || [0]64 || [len(IV) bits]64)
		var y [2]uint64
		var blk [16]byte
		for rest := iv; len(rest) > 0; {
			blk = [16]byte{}
			k := copy(blk[:], rest)
			rest = rest[k:]
			g.ghashBlock(&y, blk[:])
		}
		blk = [16]byte{}
		binary.BigEndian.PutUint64(blk[8:], uint64(len(iv))*8)
		g.ghashBlock(&y, blk[:])
		binary.BigEndian.PutUint64(g.j0[:8], y[0])
		binary.BigEndian.PutUint64(g.j0[8:], y[1])
	}

	g.ctr = g.j0
	inc32(&g.ctr)
	return g, nil
}

// mul sets y = y * H in GF(2^128).
func (g *gcmStream) mul(y *[2]uint64) {
	var z [2]uint64
	v := g.h
	for i := 0; i < 128; i++ {
		var bit uint64
		if i < 64 {
			bit = (y[0] >> (63 - i)) & 1
		} else {
			bit = (y[1] >> (127 - i)) & 1
		}
		if bit == 1 {
			z[0] ^= v[0]
			z[1] ^= v[1]
		}
		lsb := v[1] & 1
		v[1] = (v[1] >> 1) | (v[0] << 63)
		v[0] >>= 1
		if lsb == 1 {
			v[0] ^= 0xe100000000000000
		}
	}
	*y = z
}

func (g *gcmStream) ghashBlock(y *[2]uint64, b []byte) {
	y[0] ^= binary.BigEndian.Uint64(b[:8])
	y[1] ^= binary.BigEndian.Uint64(b[8:16])
	g.mul(y)
}

func inc32(ctr *[16]byte) {
	c := binary.BigEndian.Uint32(ctr[12:])
	binary.BigEndian.PutUint32(ctr[12:], c+1)
}

// xorKeyStream applies the counter mode keystream. dst and src may overlap entirely.
func (g *gcmStream) xorKeyStream(dst, src []byte) {
	for i := range src {
		if g.ksUsed == 16 {
			g.block.Encrypt(g.ks[:], g.ctr[:])
			inc32(&g.ctr)
			g.ksUsed = 0
		}
		dst[i] = src[i] ^ g.ks[g.ksUsed]
		g.ksUsed++
	}
}

// absorb feeds ciphertext into GHASH.
func (g *gcmStream) absorb(c []byte) {
	g.n += uint64(len(c))
	for len(c) > 0 {
		if g.bufN == 0 && len(c) >= 16 {
			g.ghashBlock(&g.y, c[:16])
			c = c[16:]
			continue
		}
		k := copy(g.buf[g.bufN:], c)
		g.bufN += k
		c = c[k:]
		if g.bufN == 16 {
			g.ghashBlock(&g.y, g.buf[:])
			g.bufN = 0
		}
	}
}

// tag finalizes GHASH. The stream must not be used afterwards.
func (g *gcmStream) tag() []byte {
	if g.bufN > 0 {
		for i := g.bufN; i < 16; i++ {
			g.buf[i] = 0
		}
		g.ghashBlock(&g.y, g.buf[:])
		g.bufN = 0
	}

	var lens [16]byte
	binary.BigEndian.PutUint64(lens[8:], g.n*8)
	g.ghashBlock(&g.y, lens[:])

	var s, ej0 [16]byte
	binary.BigEndian.PutUint64(s[:8], g.y[0])
	binary.BigEndian.PutUint64(s[8:], g.y[1])
	g.block.Encrypt(ej0[:], g.j0[:])

	out := make([]byte, TagSize)
	for i := range out {
		out[i] = s[i] ^ ej0[i]
	}
	return out
}
