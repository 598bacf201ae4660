package models

// Voice is a reference voice profile known to the text-to-speech service.
type Voice struct {
	Filename    string `json:"filename"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// VoiceList is the TTS service's voice listing.
type VoiceList struct {
	ActiveVoice string  `json:"active_voice"`
	Voices      []Voice `json:"voices"`
}

// ActiveVoice describes the voice currently used for synthesis.
type ActiveVoice struct {
	ActiveVoice     string `json:"active_voice"`
	Path            string `json:"path,omitempty"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	EmbeddingCached bool   `json:"embedding_cached"`
}

// SetActiveVoiceRequest selects a reference voice by file name.
type SetActiveVoiceRequest struct {
	VoiceFilename string `json:"voice_filename"`
}

// SetActiveVoiceResult reports a voice switch.
type SetActiveVoiceResult struct {
	OldVoice    string `json:"old_voice"`
	ActiveVoice string `json:"active_voice"`
}

// UploadedVoice is returned after a reference voice upload.
type UploadedVoice struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
}

// CacheFile is one speaker embedding cache file.
type CacheFile struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"` // Unix seconds
}

// CacheInfo summarizes the speaker embedding cache directory.
type CacheInfo struct {
	TotalCachedEmbeddings int         `json:"total_cached_embeddings"`
	MetadataEntries       int         `json:"metadata_entries"`
	CacheFiles            []CacheFile `json:"cache_files"`
}

// TotalSize sums the size of all cache files in bytes.
func (c CacheInfo) TotalSize() int64 {
	var total int64
	for _, f := range c.CacheFiles {
		total += f.Size
	}
	return total
}
