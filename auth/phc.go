/*
Copyright (C) 2026  ReedCMS Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package auth

import "encoding/base64"

// b64/unb64 use the unpadded standard alphabet, as the PHC string
// format requires.
func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func unb64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(s)
}
