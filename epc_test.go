// go-uhf
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-uhf.
//
// go-uhf is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-uhf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-uhf; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package uhf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEPC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "pads 22 digits to a word boundary", in: "0420100420250910000006", want: "042010042025091000000600"},
		{name: "already aligned", in: "E2801170000002085C1A1C50", want: "E2801170000002085C1A1C50"},
		{name: "lower case and spaces", in: "  e280ab ", want: "E280AB00"},
		{name: "single digit", in: "7", want: "7000"},
		{name: "empty", in: "", want: ""},
		{name: "blank", in: "   ", want: ""},
		{name: "non hex", in: "E280-1170", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeEPC(tt.in))
		})
	}
}

func TestNormalizeEPC_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"0420100420250910000006", "abc", "E2801170000002085C1A1C50", "1", "12345", "zz"}
	for _, in := range inputs {
		once := NormalizeEPC(in)
		assert.Equal(t, once, NormalizeEPC(once), "input %q", in)
		assert.Zero(t, len(once)%4, "input %q", in)
	}
}
