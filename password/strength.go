package password

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 8
	MaxLength = 128

	specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"
)

// Strength is the band a scored password falls into.
type Strength int

const (
	StrengthInvalid Strength = iota
	StrengthWeak
	StrengthFair
	StrengthGood
	StrengthStrong
	StrengthExcellent
)

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthFair:
		return "fair"
	case StrengthGood:
		return "good"
	case StrengthStrong:
		return "strong"
	case StrengthExcellent:
		return "excellent"
	default:
		return "invalid"
	}
}

func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UserInfo carries the personal data a password must not contain.
type UserInfo struct {
	Name  string
	Email string
}

// Assessment is the derived, never persisted, result of [Assess].
type Assessment struct {
	Score       int      `json:"score"`
	Strength    Strength `json:"strength"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	EntropyBits float64  `json:"entropyBits"`
	Suggestions []string `json:"suggestions"`
	IsValid     bool     `json:"isValid"`
}

// Error messages double as the keys suggestions are derived from.
const (
	msgLength      = "password must be between 8 and 128 characters"
	msgUpper       = "password must contain an uppercase letter"
	msgLower       = "password must contain a lowercase letter"
	msgDigit       = "password must contain a digit"
	msgSpecial     = "password must contain a special character"
	msgCommon      = "password is too common"
	msgPattern     = "password contains a predictable pattern"
	msgPersonName  = "password must not contain your name"
	msgPersonEmail = "password must not contain your email"
	msgTooWeak     = "password is too weak"

	warnRepetition = "a single character is repeated too often"
	warnYear       = "password contains a recent year"
	warnDigitRun   = "password contains four or more identical digits in a row"
	warnEntropy    = "password has low character variety"
	warnSpaces     = "password starts or ends with a space"
	warnOnlySymbol = "password is made only of special characters"
)

var commonPasswords = map[string]struct{}{}

func init() {
	for _, pw := range []string{
		"password", "password1", "password123", "passw0rd", "p@ssw0rd", "12345678",
		"123456789", "1234567890", "qwerty123", "qwertyuiop", "iloveyou", "sunshine",
		"princess", "football", "baseball", "welcome1", "letmein1", "trustno1",
		"dragon123", "monkey123", "superman", "starwars", "whatever", "michael1",
		"shadow123", "master123", "abc12345", "abcd1234", "admin123", "administrator",
		"contraseña", "contrasena", "contrasena1", "12341234", "11111111", "00000000",
		"asdfghjkl", "zaq12wsx", "1q2w3e4r", "qazwsxedc", "changeme", "default1",
	} {
		commonPasswords[pw] = struct{}{}
	}
}

var (
	weakPatterns  = compileWeakPatterns()
	equalDigitRun = mustCompile(`(\d)\1{3,}`)
)

func mustCompile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = 50 * time.Millisecond
	return re
}

func windows(seq string, size int) []string {
	var out []string
	for i := 0; i+size <= len(seq); i++ {
		out = append(out, seq[i:i+size])
	}
	return out
}

func reversed(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func runAlternation(seqs ...string) string {
	var parts []string
	for _, seq := range seqs {
		parts = append(parts, windows(seq, 4)...)
		parts = append(parts, windows(reversed(seq), 4)...)
	}
	return "(" + strings.Join(parts, "|") + ")"
}

func compileWeakPatterns() []*regexp2.Regexp {
	exprs := []string{
		`(.)\1{2,}`,
		runAlternation("0123456789", "abcdefghijklmnopqrstuvwxyz"),
		runAlternation("qwertyuiop", "asdfghjkl", "zxcvbnm"),
		`p[a@4]ssw[o0]rd|contrase[nñ]a|passwd`,
		`^(admin|root|user|usuario|guest|test|login|welcome)`,
		`^(19|20)\d{2}$`,
		`^[a-z]+(19|20)\d{2}[^a-z0-9]?$`,
		`^\d+$`,
		`^\p{L}+$`,
		`^(.{1,4})\1+$`,
	}
	out := make([]*regexp2.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, mustCompile(expr))
	}
	return out
}

// Assess scores password against the policy using the current clock.
func Assess(password string, info *UserInfo) Assessment {
	return AssessWithClock(password, info, time.Now())
}

// AssessWithClock is Assess with an explicit "now" for the recent-year rule.
func AssessWithClock(password string, info *UserInfo, now time.Time) Assessment {
	a := Assessment{
		Errors:   []string{},
		Warnings: []string{},
	}

	pw := norm.NFC.String(password)
	length := utf8.RuneCountInString(pw)
	if password == "" || length < MinLength || length > MaxLength {
		a.Errors = append(a.Errors, msgLength)
		a.Suggestions = suggestionsFor(a.Errors)
		return a
	}

	lower := strings.ToLower(pw)
	score := 0

	var hasUpper, hasLower, hasDigit, hasSpecial, hasAccented bool
	onlySpecial := true
	for _, r := range pw {
		isSpecial := r < utf8.RuneSelf && strings.ContainsRune(specialChars, r)
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case isSpecial:
			hasSpecial = true
		}
		if unicode.IsLetter(r) && r > unicode.MaxASCII {
			hasAccented = true
		}
		if !isSpecial {
			onlySpecial = false
		}
	}

	classes := 0
	if hasUpper {
		score += 10
		classes++
	} else {
		a.Errors = append(a.Errors, msgUpper)
	}
	if hasLower {
		score += 10
		classes++
	} else {
		a.Errors = append(a.Errors, msgLower)
	}
	if hasDigit {
		score += 10
		classes++
	} else {
		a.Errors = append(a.Errors, msgDigit)
	}
	if hasSpecial {
		score += 15
		classes++
	} else {
		a.Errors = append(a.Errors, msgSpecial)
	}
	if hasAccented {
		classes++
	}

	if length >= 12 {
		score += 10
	}
	if length >= 16 {
		score += 10
	}
	if length >= 20 {
		score += 5
	}
	score += classes * 5

	if maxRuneShare(lower, length) > 0.3 {
		score -= 15
		a.Warnings = append(a.Warnings, warnRepetition)
	}

	for _, re := range weakPatterns {
		if ok, _ := re.MatchString(lower); ok {
			score -= 20
			a.Errors = append(a.Errors, msgPattern)
			break
		}
	}

	if info != nil {
		if frag := strings.ToLower(strings.TrimSpace(info.Name)); containsEither(lower, frag) {
			score -= 15
			a.Errors = append(a.Errors, msgPersonName)
		}
		local := info.Email
		if at := strings.IndexByte(local, '@'); at >= 0 {
			local = local[:at]
		}
		if frag := strings.ToLower(strings.TrimSpace(local)); containsEither(lower, frag) {
			score -= 15
			a.Errors = append(a.Errors, msgPersonEmail)
		}
	}

	if containsRecentYear(pw, now.Year()) {
		score -= 5
		a.Warnings = append(a.Warnings, warnYear)
	}

	if ok, _ := equalDigitRun.MatchString(pw); ok {
		score -= 10
		a.Warnings = append(a.Warnings, warnDigitRun)
	}

	a.EntropyBits = entropyBits(pw)
	switch {
	case a.EntropyBits < 30:
		score -= 10
		a.Warnings = append(a.Warnings, warnEntropy)
	case a.EntropyBits > 60:
		score += 15
	}

	if strings.HasPrefix(pw, " ") || strings.HasSuffix(pw, " ") {
		a.Warnings = append(a.Warnings, warnSpaces)
	}
	if onlySpecial {
		a.Warnings = append(a.Warnings, warnOnlySymbol)
	}

	if _, ok := commonPasswords[lower]; ok {
		score = 0
		a.Errors = append(a.Errors, msgCommon)
	}

	a.Score = clamp(score, 0, 100)

	if len(a.Errors) == 0 {
		a.Strength = band(a.Score)
		if a.Strength == StrengthWeak {
			a.Errors = append(a.Errors, msgTooWeak)
		}
	}

	a.IsValid = len(a.Errors) == 0 && a.Strength != StrengthWeak
	a.Suggestions = suggestionsFor(a.Errors)
	return a
}

func band(score int) Strength {
	switch {
	case score < 30:
		return StrengthWeak
	case score < 50:
		return StrengthFair
	case score < 70:
		return StrengthGood
	case score < 85:
		return StrengthStrong
	default:
		return StrengthExcellent
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxRuneShare(s string, length int) float64 {
	counts := make(map[rune]int, length)
	top := 0
	for _, r := range s {
		counts[r]++
		if counts[r] > top {
			top = counts[r]
		}
	}
	return float64(top) / float64(length)
}

// containsEither ignores fragments shorter than three runes; they match too
// many unrelated passwords to be useful.
func containsEither(pw, frag string) bool {
	if utf8.RuneCountInString(frag) < 3 {
		return false
	}
	return strings.Contains(pw, frag) || strings.Contains(frag, pw)
}

func containsRecentYear(pw string, year int) bool {
	b := []byte(pw)
	for i := 0; i+4 <= len(b); i++ {
		window := b[i : i+4]
		digits := true
		for _, c := range window {
			if c < '0' || c > '9' {
				digits = false
				break
			}
		}
		if !digits {
			continue
		}
		y, _ := strconv.Atoi(string(window))
		if y >= year-50 && y <= year+5 {
			return true
		}
	}
	return false
}

func entropyBits(pw string) float64 {
	unique := make(map[rune]struct{})
	for _, r := range pw {
		unique[r] = struct{}{}
	}
	return float64(len(unique)) * math.Log2(95)
}

var suggestionRules = []struct {
	match string
	tip   string
}{
	{"between 8 and 128", "Use between 8 and 128 characters; longer passphrases are easier to remember"},
	{"uppercase", "Add at least one uppercase letter"},
	{"lowercase", "Add at least one lowercase letter"},
	{"digit", "Add at least one number"},
	{"special character", "Add a symbol such as ! @ # or &"},
	{"too common", "Avoid well-known passwords"},
	{"predictable pattern", "Avoid sequences, keyboard runs and repeated characters"},
	{"your name", "Do not include your name"},
	{"your email", "Do not include your email address"},
	{"too weak", "Make it longer and mix more character types"},
}

func suggestionsFor(errs []string) []string {
	out := []string{}
	for _, rule := range suggestionRules {
		for _, e := range errs {
			if strings.Contains(e, rule.match) {
				out = append(out, rule.tip)
				break
			}
		}
	}
	return append(out,
		"Consider a passphrase of several unrelated words",
		"Never reuse a password from another site",
	)
}
