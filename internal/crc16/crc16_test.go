// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crc16_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/go-lpc/trion/internal/crc16"
	"github.com/snksoft/crc"
)

func TestCRC16(t *testing.T) {
	for _, tc := range []struct {
		name string
		tbl  *crc.Table
		raw  []byte
		want uint16
	}{
		{
			name: "ccitt",
			raw:  []byte{0x1, 0x2, 0x3, 0x4, 0x5},
			want: 0x9304,
		},
		{
			name: "ccitt-check",
			tbl:  crc16.CCITT,
			raw:  []byte("123456789"),
			want: 0x29b1,
		},
		{
			name: "xmodem",
			tbl:  crc.NewTable(crc.XMODEM),
			raw:  []byte{0x1, 0x2, 0x3, 0x4, 0x5},
			want: 0x8208,
		},
		{
			name: "empty",
			raw:  nil,
			want: 0xffff,
		},
	} {
		t.Run(fmt.Sprintf("%s-0x%x", tc.name, tc.want), func(t *testing.T) {
			h := crc16.New(tc.tbl)
			if got, want := h.BlockSize(), 1; got != want {
				t.Fatalf("invalid crc16 block size: got=%d, want=%d", got, want)
			}

			_, _ = h.Write([]byte("garbage"))
			h.Reset()

			// feed the input in two parts.
			half := len(tc.raw) / 2
			for _, p := range [][]byte{tc.raw[:half], tc.raw[half:]} {
				_, err := h.Write(p)
				if err != nil {
					t.Fatalf("could not write crc16 hash: %+v", err)
				}
			}

			if got, want := h.Sum16(), tc.want; got != want {
				t.Fatalf("invalid crc16 checksum: got=0x%x, want=0x%x", got, want)
			}

			want := make([]byte, h.Size())
			binary.BigEndian.PutUint16(want, tc.want)
			if got := h.Sum(nil); !bytes.Equal(got, want) {
				t.Fatalf("invalid crc16 checksum: got=0x%x, want=0x%x", got, want)
			}
		})
	}
}
