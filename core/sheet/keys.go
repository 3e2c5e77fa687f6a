package sheet

import (
	"regexp"
	"strconv"
)

// Response keys are plain strings: the group number followed by a local id.
//
//	"1a"        question a of group 1
//	"1aS"       its status ("complete" locks the answer)
//	"1aF2"      its second follow-up question, "1aFA2" the answer
//	"1acode1"   the first code block embedded in question 1a
//	"0code2"    the second standalone code cell of the preamble
//	"1aoutput1" captured program output of "1acode1"
//	"2state"    submission state of group 2
const (
	statusSuffix         = "S"
	followupSuffix       = "F"
	followupAnswerSuffix = "FA"

	// StatusComplete marks an answer as final.
	StatusComplete = "complete"
)

var codeKeyRe = regexp.MustCompile(`^([0-9]+[a-z]*)code([0-9]+)$`)

func ResponseKey(groupID int, id string) string {
	return strconv.Itoa(groupID) + id
}

func StatusKey(key string) string { return key + statusSuffix }

// FollowupKey is the key of the n-th (1-based) saved follow-up question of `key`.
func FollowupKey(key string, n int) string {
	return key + followupSuffix + strconv.Itoa(n)
}

func FollowupAnswerKey(key string, n int) string {
	return key + followupAnswerSuffix + strconv.Itoa(n)
}

// GroupStateKey stores whether a question group was submitted ("complete").
func GroupStateKey(groupID int) string {
	return strconv.Itoa(groupID) + "state"
}

// CellKey is the key of the m-th (1-based) standalone code cell of a group.
func CellKey(groupID, m int) string {
	return strconv.Itoa(groupID) + "code" + strconv.Itoa(m)
}

// OutputKey derives the key of the hidden element holding a code block's output.
// Its domain is ^[0-9]+[a-z]*code[0-9]+$, mapped to <prefix>output<m>;
// any other input yields ("", false).
func OutputKey(codeKey string) (string, bool) {
	if !codeKeyRe.MatchString(codeKey) {
		return "", false
	}
	return codeKeyRe.ReplaceAllString(codeKey, "${1}output${2}"), true
}

// IsCodeKey reports whether key names a code block.
func IsCodeKey(key string) bool {
	return codeKeyRe.MatchString(key)
}

// ColumnID returns the spreadsheet-column style id of the n-th (0-based) question:
// a, b, …, z, aa, ab, …
func ColumnID(n int) string {
	if n < 0 {
		return ""
	}
	var buf []byte
	for n++; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('a' + (n-1)%26)}, buf...)
	}
	return string(buf)
}
