package store

import (
	"sort"

	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
)

func applyDocumentUpdate(doc *docModel.Document, update docModel.DocumentUpdate) {
	if update.Status != nil {
		doc.Status = *update.Status
	}
	if update.Markdown != nil {
		doc.Markdown = *update.Markdown
	}
	if update.TotalChunks != nil {
		doc.TotalChunks = *update.TotalChunks
	}
	if update.ProcessedChunks != nil {
		doc.ProcessedChunks = *update.ProcessedChunks
	}
	if update.ErrorMessage != nil {
		doc.ErrorMessage = *update.ErrorMessage
	}
	if update.ExtractedText != nil {
		doc.ExtractedText = *update.ExtractedText
	}
}

func applyChunkUpdate(chunk *docModel.DocumentChunk, update docModel.ChunkUpdate) {
	if update.Status != nil {
		chunk.Status = *update.Status
	}
	if update.ProcessedContent != nil {
		chunk.ProcessedContent = *update.ProcessedContent
	}
	if update.ErrorMessage != nil {
		chunk.ErrorMessage = *update.ErrorMessage
	}
	if update.Retry != nil {
		chunk.Retry = *update.Retry
	}
}

func sortDocumentsByCreation(docs []docModel.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedTime.Equal(docs[j].CreatedTime) {
			return docs[i].Id < docs[j].Id
		}
		return docs[i].CreatedTime.Before(docs[j].CreatedTime)
	})
}

func sortChunksByIndex(chunks []docModel.DocumentChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
}
