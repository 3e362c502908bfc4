package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/repositories"
)

// recognizeStream is the part of the gRPC streaming client the recognizer uses
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type streamOpener func(ctx context.Context) (recognizeStream, error)

// GoogleSpeech owns the Google Cloud Speech client shared by all sessions
type GoogleSpeech struct {
	client *speech.Client
	config repositories.AudioConfig
	logger *zap.Logger
}

// NewGoogleSpeech creates the Google Cloud Speech client using application
// default credentials.
func NewGoogleSpeech(ctx context.Context, config repositories.AudioConfig, logger *zap.Logger) (*GoogleSpeech, error) {
	if _, err := getAudioEncoding(config.Encoding); err != nil {
		return nil, err
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeech{client: client, config: config, logger: logger}, nil
}

// Recognizer returns a recognizer that streams audio from source
func (g *GoogleSpeech) Recognizer(source repositories.AudioSource) *GoogleRecognizer {
	open := func(ctx context.Context) (recognizeStream, error) {
		return g.client.StreamingRecognize(ctx)
	}
	return newGoogleRecognizer(open, source, g.config, g.logger)
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}

// GoogleRecognizer runs single-utterance streaming recognition sessions
type GoogleRecognizer struct {
	open   streamOpener
	source repositories.AudioSource
	config repositories.AudioConfig
	logger *zap.Logger
}

var _ repositories.SpeechRecognizer = (*GoogleRecognizer)(nil)

func newGoogleRecognizer(open streamOpener, source repositories.AudioSource, config repositories.AudioConfig, logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{open: open, source: source, config: config, logger: logger}
}

// Recognize streams microphone audio until Google reports the end of the
// utterance. Interim hypotheses are passed to onInterim.
func (r *GoogleRecognizer) Recognize(ctx context.Context, onInterim func(text string)) (string, error) {
	encoding, err := getAudioEncoding(r.config.Encoding)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(r.config.SampleRate),
					LanguageCode:    r.config.Language,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		return "", fmt.Errorf("failed to send streaming config: %w", err)
	}

	go r.pump(ctx, stream)

	var finals []string
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return strings.TrimSpace(strings.Join(finals, " ")), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("failed to receive response: %w", err)
		}

		for _, result := range resp.GetResults() {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			if result.IsFinal {
				finals = append(finals, strings.TrimSpace(transcript))
			} else if onInterim != nil && transcript != "" {
				onInterim(transcript)
			}
		}
	}
}

// pump forwards audio chunks to the stream until the source or the stream ends
func (r *GoogleRecognizer) pump(ctx context.Context, stream recognizeStream) {
	defer stream.CloseSend()

	for {
		chunk, err := r.source.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				r.logger.Warn("Audio source read failed", zap.Error(err))
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}

		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		}); err != nil {
			// Send fails once the server half-closed after the utterance
			return
		}
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
