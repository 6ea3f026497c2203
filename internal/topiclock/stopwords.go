package topiclock

// stopWords are Vietnamese syllables and English words that carry no topic.
var stopWords = toSet(
	// Vietnamese
	"và", "của", "là", "có", "cho", "với", "các", "những", "một", "được",
	"này", "đó", "kia", "đây", "trong", "để", "khi", "thì", "mà", "từ",
	"đến", "về", "như", "cũng", "đã", "sẽ", "đang", "rất", "nhiều", "bạn",
	"chúng", "tôi", "mình", "ta", "không", "nhưng", "hay", "hoặc", "vì", "nên",
	"lại", "ra", "vào", "lên", "trên", "dưới", "theo", "tại", "ở", "bị",
	"do", "nếu", "thế", "nào", "gì", "ai", "vẫn", "chỉ", "còn", "đều",
	"hơn", "nhất", "cùng", "sau", "trước", "nhé", "nha", "ạ", "ơi", "à",
	"thêm", "luôn", "hết", "mỗi", "mọi", "tất", "cả", "việc", "điều", "bởi",
	"rồi", "đi", "làm", "thể", "thật", "quá", "vậy", "hãy", "ngay", "khiến",
	// English
	"the", "a", "an", "and", "or", "but", "of", "to", "in", "on",
	"for", "with", "at", "by", "from", "is", "are", "was", "were", "be",
	"been", "it", "this", "that", "these", "those", "you", "your", "we", "our",
	"they", "their", "as", "will", "can", "has", "have", "had", "not", "no",
	"so", "if", "than", "then", "all", "more", "most", "just", "also", "only",
	"into", "about", "up", "out", "its", "my", "me", "us", "he", "she",
	"his", "her", "them", "what", "which", "who", "how", "when", "where", "do",
	"does", "did", "get", "make", "now",
)

// importanceWords mark a sentence as must-keep.
var importanceWords = []string{
	"quan trọng", "lưu ý", "chú ý", "bắt buộc", "cam kết", "đảm bảo",
	"miễn phí", "duy nhất", "chỉ còn", "hạn chót", "hết hạn", "không áp dụng",
	"important", "note:", "must", "guarantee", "free of charge", "deadline", "limited",
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
