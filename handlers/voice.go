package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"courtside/models"
	"courtside/services/dialogue"
)

const (
	maxAudioSize     = 5 * 1024 * 1024
	allowedExtension = ".wav"
)

type waveHeader struct {
	RiffTag       [4]byte
	FileSize      uint32
	WaveTag       [4]byte
	FmtTag        [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataTag       [4]byte
	DataSize      uint32
}

func parseWaveHeader(data []byte) (*waveHeader, error) {
	if len(data) < 44 {
		return nil, errors.New("invalid WAV header length")
	}
	var header waveHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if string(header.RiffTag[:]) != "RIFF" || string(header.WaveTag[:]) != "WAVE" {
		return nil, errors.New("not a WAV file")
	}
	return &header, nil
}

// VoiceHandler transcribes a voice note and runs the transcript through the
// same dialogue pipeline as a text message.
type VoiceHandler struct {
	Dialogue        dialogue.DialogueService
	CredentialsFile string
	Logger          *zap.Logger
}

// NewVoiceHandler wires the voice endpoint.
func NewVoiceHandler(svc dialogue.DialogueService, credentialsFile string, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{Dialogue: svc, CredentialsFile: credentialsFile, Logger: logger}
}

// Transcribe accepts a multipart WAV upload plus the sender's phone number,
// transcribes it and processes the transcript as an inbound message.
func (h *VoiceHandler) Transcribe(c *gin.Context) {
	language := c.DefaultPostForm("language", "es-ES")
	phone := c.PostForm("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required", "details": err.Error()})
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != allowedExtension {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid file type",
			"details": fmt.Sprintf("expected %s, got %s", allowedExtension, ext),
		})
		return
	}

	audioData, err := io.ReadAll(io.LimitReader(file, maxAudioSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audio", "details": err.Error()})
		return
	}

	wav, err := parseWaveHeader(audioData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audio file", "details": err.Error()})
		return
	}

	transcript, err := h.recognize(c.Request.Context(), audioData, wav, language)
	if err != nil {
		h.Logger.Error("speech recognition failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failed", "details": err.Error()})
		return
	}
	if transcript == "" {
		c.JSON(http.StatusOK, gin.H{"transcript": "", "outcome": "empty"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), eventTimeout)
	defer cancel()
	res, err := h.Dialogue.HandleEvent(ctx, models.InboundEvent{
		Channel:   "voice",
		UserID:    phone,
		Text:      transcript,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.Logger.Error("voice event processing failed",
			zap.String("userId", phone), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": transcript, "outcome": res.Outcome})
}

func (h *VoiceHandler) recognize(ctx context.Context, audioData []byte, wav *waveHeader, language string) (string, error) {
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(h.CredentialsFile))
	if err != nil {
		return "", fmt.Errorf("failed to initialize speech client: %w", err)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(wav.SampleRate),
			LanguageCode:      language,
			AudioChannelCount: int32(wav.NumChannels),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			sb.WriteString(result.Alternatives[0].Transcript)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
