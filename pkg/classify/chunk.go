package classify

import "strings"

// Chunk は、テキストを空白区切りの語数が maxWords 以下の断片に分割します。
// 語数による近似であり、トークン数を正確に数えるものではありません。
// maxWords が 0 以下の場合は全体を1つの断片として返します。
func Chunk(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 {
		return []string{strings.Join(words, " ")}
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for len(words) > 0 {
		n := min(maxWords, len(words))
		chunks = append(chunks, strings.Join(words[:n], " "))
		words = words[n:]
	}
	return chunks
}
