// Package validation holds the pure checks applied to identity data at
// registration: Ecuadorian cédula checksum, mobile phone format, username and
// password policy. Every function is total and returns only a verdict.
package validation

import (
	"strings"
	"unicode"
)

// nationalIDWeights are the modulus-10 coefficients applied to digits 0..8.
var nationalIDWeights = [9]int{2, 1, 2, 1, 2, 1, 2, 1, 2}

const (
	maxProvince       = 24
	maxThirdDigit     = 5
	usernameTokenMin  = 5 // name tokens shorter than this are allowed inside usernames
	passwordTokenMin  = 3 // personal tokens shorter than this are allowed inside passwords
	minPasswordLength = 8
)

// NationalID reports whether id is a valid 10-digit Ecuadorian cédula.
func NationalID(id string) bool {
	if len(id) != 10 || !isDigits(id) {
		return false
	}
	province := int(id[0]-'0')*10 + int(id[1]-'0')
	if province < 1 || province > maxProvince {
		return false
	}
	if int(id[2]-'0') > maxThirdDigit {
		return false
	}
	sum := 0
	for i, w := range nationalIDWeights {
		p := int(id[i]-'0') * w
		if p >= 10 {
			p -= 9
		}
		sum += p
	}
	check := (10 - sum%10) % 10
	return check == int(id[9]-'0')
}

// Phone reports whether phone is a 10-digit mobile number starting with 09.
func Phone(phone string) bool {
	return len(phone) == 10 && strings.HasPrefix(phone, "09") && isDigits(phone)
}

// Username reports whether username is alphanumeric and does not equal, start
// with, or end with any name token of five or more characters.
func Username(username, firstNames, lastNames string) bool {
	if username == "" {
		return false
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	lower := strings.ToLower(username)
	tokens := append(strings.Fields(strings.ToLower(firstNames)), strings.Fields(strings.ToLower(lastNames))...)
	for _, tok := range tokens {
		if len([]rune(tok)) < usernameTokenMin {
			continue
		}
		if lower == tok || strings.HasPrefix(lower, tok) || strings.HasSuffix(lower, tok) {
			return false
		}
	}
	return true
}

// Password reports whether password is at least eight characters long, mixes
// upper case, lower case, digits and symbols, and contains no token of three
// or more characters taken from personal.
func Password(password string, personal ...string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return false
	}
	pw := strings.ToLower(password)
	for _, field := range personal {
		for _, tok := range strings.Fields(strings.ToLower(field)) {
			if len([]rune(tok)) >= passwordTokenMin && strings.Contains(pw, tok) {
				return false
			}
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
