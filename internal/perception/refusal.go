package perception

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinReplyLength is the rune count below which any reply is a refusal.
const MinReplyLength = 20

// RefusalScanWindow is how many leading runes are scanned for refusal phrases.
// A phrase deep inside a long answer is quoted content, not a refusal.
const RefusalScanWindow = 150

// RefusalOpenings mark a refusal only when the reply starts with them.
// Elsewhere they are ordinary copy ("Rất tiếc nếu bạn bỏ lỡ…").
var RefusalOpenings = []string{
	// English
	"i'm sorry",
	"i am sorry",
	"sorry, i",
	"sorry, but",
	"i apologize",
	"unfortunately, i",
	// Vietnamese
	"xin lỗi",
	"rất tiếc",
	"chưa có nội dung",
}

// RefusalPhrases are lower-case EN/VI non-answers matched anywhere in the
// scan window. Each names what the model will not or cannot do.
var RefusalPhrases = []string{
	// English
	"i can't help",
	"i can't assist",
	"i can't do that",
	"i can't rewrite",
	"i can't write",
	"i can't provide",
	"i cannot help",
	"i cannot assist",
	"i cannot do that",
	"i cannot rewrite",
	"i cannot write",
	"i cannot provide",
	"i can not help",
	"i'm unable to",
	"i am unable to",
	"i'm not able to",
	"i am not able to",
	"i won't be able to",
	"as an ai",
	"as a language model",
	"i don't have enough",
	"i do not have enough",
	"please provide the",
	"please provide more",
	"could you provide",
	"could you please provide",
	"i need more information",
	"i need more context",
	// Vietnamese
	"tôi không thể giúp",
	"mình không thể giúp",
	"em không thể giúp",
	"tôi không có khả năng",
	"tôi không được phép",
	"không thể thực hiện yêu cầu",
	"không thể hỗ trợ yêu cầu",
	"là một ai",
	"là mô hình ngôn ngữ",
	"bạn vui lòng cung cấp",
	"vui lòng cung cấp nội dung",
	"bạn có thể cung cấp",
	"tôi cần thêm thông tin",
	"mình cần thêm thông tin",
}

// IsRefusal reports whether a model reply is a non-answer.
func IsRefusal(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if utf8.RuneCountInString(trimmed) < MinReplyLength {
		return true
	}
	head := strings.ToLower(leadingRunes(trimmed, RefusalScanWindow))
	head = strings.ReplaceAll(head, "’", "'")

	opening := strings.TrimLeftFunc(head, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, phrase := range RefusalOpenings {
		if strings.HasPrefix(opening, phrase) {
			return true
		}
	}
	for _, phrase := range RefusalPhrases {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}

// leadingRunes returns at most n runes from the start of s.
func leadingRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
