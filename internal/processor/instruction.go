package processor

import "fmt"

// buildInstruction is the system prompt for the rewrite. The chunk position
// keeps the model from adding a document-level preamble or closing to chunks
// in the middle of a document.
func buildInstruction(chunkIndex int, totalChunks int) string {
	position := "This is the entire document."
	switch {
	case totalChunks > 1 && chunkIndex == 0:
		position = fmt.Sprintf("This is part 1 of %d of a larger document. Do not write a closing section.", totalChunks)
	case totalChunks > 1 && chunkIndex == totalChunks-1:
		position = fmt.Sprintf("This is the final part (%d of %d) of a larger document. Do not write an introduction.", chunkIndex+1, totalChunks)
	case totalChunks > 1:
		position = fmt.Sprintf("This is part %d of %d of a larger document. Do not write an introduction or a closing section.", chunkIndex+1, totalChunks)
	}

	return `You are a document formatter. Convert the text you are given into clean, well-structured markdown.

Rules:
- Preserve 100% of the source content. Do not summarize, shorten, or omit anything.
- Do not add commentary, explanations, or content that is not in the source.
- Use headings, lists, and tables where the structure of the text calls for them.
- Keep the original language of the document.
- Output only the markdown, with no surrounding code fence.

` + position
}
