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

import "strings"

// NormalizeEPC canonicalizes an EPC hex string for storage and lookup:
// surrounding space is trimmed, letters are upper-cased and the string is
// right-padded with '0' to a multiple of 4 hex digits, since readers always
// report whole 16-bit words. Input containing non-hex characters yields "".
//
// NormalizeEPC is idempotent.
func NormalizeEPC(epc string) string {
	epc = strings.ToUpper(strings.TrimSpace(epc))
	if epc == "" {
		return ""
	}
	for i := 0; i < len(epc); i++ {
		c := epc[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return ""
		}
	}
	if rem := len(epc) % 4; rem != 0 {
		epc += strings.Repeat("0", 4-rem)
	}
	return epc
}
