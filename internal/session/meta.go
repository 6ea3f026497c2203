package session

import "strings"

var metaReplies = map[bool]string{
	true: strings.Join([]string{
		"Mình có thể:",
		"- Viết nội dung mới (bài đăng, mô tả, caption)",
		"- Viết lại, rút gọn, mở rộng một bài đã viết",
		"- Đổi giọng văn, đổi định dạng, dịch",
		"- Tối ưu và đánh giá nội dung",
		"Hãy chọn một bài trước đó hoặc trích dẫn nó khi muốn chỉnh sửa.",
	}, "\n"),
	false: strings.Join([]string{
		"I can:",
		"- Write new content (posts, descriptions, captions)",
		"- Rewrite, shorten or expand something I wrote",
		"- Change its tone or format, or translate it",
		"- Optimize and evaluate content",
		"Pick or quote an earlier output when you want it edited.",
	}, "\n"),
}

// MetaReply answers questions about the assistant itself without a model call.
func MetaReply(input string) string {
	return metaReplies[hasVietnameseMarks(input)]
}

const vietnameseMarks = "ăâđêôơưĂÂĐÊÔƠƯàáãèéìíĩòóõùúũýÀÁÃÈÉÌÍĨÒÓÕÙÚŨÝ"

func hasVietnameseMarks(s string) bool {
	for _, r := range s {
		if (r >= 0x1EA0 && r <= 0x1EF9) || strings.ContainsRune(vietnameseMarks, r) {
			return true
		}
	}
	return false
}
