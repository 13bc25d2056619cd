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

package gate

import (
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
)

// TagRead is one raw sighting as persisted.
type TagRead struct {
	ReadTime   time.Time
	EPC        string
	ReaderName string
	RSSI       int8
	Antenna    uint8
}

// AlertEvent records a registered asset seen at a gate without a valid
// export permission.
type AlertEvent struct {
	Timestamp   time.Time
	EPC         string
	AssetNumber string
	AssetName   string
	ReaderName  string
	RSSI        int8
}

// Activity is one entry of the live view.
type Activity struct {
	Reader       string
	AssetNumber  string
	AssetName    string
	Sighting     uhf.TagSighting
	Registered   bool
	Unauthorized bool
}
