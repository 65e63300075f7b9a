package utils

// SplitText splits a long string into chunks of 'chunkSize' characters (runes).
// Consecutive chunks share 'overlap' characters to preserve context at boundaries.
// A text of L > chunkSize runes yields ceil((L-overlap)/(chunkSize-overlap)) chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	totalLen := len(runes)
	if chunkSize <= 0 || totalLen <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if overlap < 0 || step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		// Strict character slicing; cutting a word is safer than losing data.
		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}

// ChunkCount predicts len(SplitText(text, chunkSize, overlap)) for a text of n runes.
func ChunkCount(n, chunkSize, overlap int) int {
	if n == 0 {
		return 0
	}
	if chunkSize <= 0 || n <= chunkSize {
		return 1
	}
	step := chunkSize - overlap
	if overlap < 0 || step <= 0 {
		step = chunkSize
		overlap = 0
	}
	return (n - overlap + step - 1) / step
}
