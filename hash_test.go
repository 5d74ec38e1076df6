// Copyright 2024 Terminos Storage Protocol
// This file is part of the tos library.
//
// The tos library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tos library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tos library. If not, see <http://www.gnu.org/licenses/>.

package dhtring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIsNonNegative(t *testing.T) {
	keys := []string{"", "a", "hello", "the quick brown fox", "x", "key-123456789012345"}
	for _, k := range keys {
		h := Hash(k)
		assert.GreaterOrEqual(t, h, int32(0), "key %q", k)
		assert.Less(t, h, int32(HashSpace), "key %q", k)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	assert.Equal(t, Hash("repeatable"), Hash("repeatable"))
	assert.Equal(t, Hash(""), Hash(""))
}

func TestHashDistinguishesKeys(t *testing.T) {
	assert.NotEqual(t, Hash("alpha"), Hash("beta"))
}

func TestHashShortKeysAreSelfConcatenated(t *testing.T) {
	// Hash pads "ab" to 16 bytes by repeating it, so it must hash exactly like
	// the already-padded key.
	a := Hash("ab")
	b := Hash("abababababababab")
	assert.Equal(t, a, b)
}
