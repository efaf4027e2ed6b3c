// Command example synthesizes a line of text through the Eleven Labs
// adapter and writes the raw PCM to disk, for checking voice settings
// without booting the whole server.
//
//	go run ./adapters/tts/example -text "Hello from the glasses"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/adapters/tts"
)

func main() {
	text := flag.String("text", "Hello! This is what answers from the glasses sound like.", "text to synthesize")
	out := flag.String("out", "example_output.pcm", "output file for the raw 16kHz mono PCM")
	listVoices := flag.Bool("voices", false, "also list the voices available to the account")
	play := flag.Bool("play", true, "play the result through a local audio player")
	flag.Parse()

	godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	service, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to create TTS service", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audio, err := service.ConvertTextToSpeech(ctx, *text)
	if err != nil {
		logger.Fatal("Failed to convert text to speech", zap.Error(err))
	}

	file, err := os.Create(*out)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}

	total := 0
	for chunk := range audio {
		n, err := file.Write(chunk)
		if err != nil {
			logger.Fatal("Failed to write audio chunk", zap.Error(err))
		}
		total += n
	}
	if err := file.Close(); err != nil {
		logger.Fatal("Failed to close output file", zap.Error(err))
	}
	if total == 0 {
		logger.Fatal("No audio received, check the API key and logs above")
	}

	fmt.Printf("Wrote %d bytes of PCM to %s\n", total, *out)

	if *play {
		if err := playPCM(*out); err != nil {
			fmt.Println("No local player could play it; try one of:")
			printPlayerHints(*out)
		}
	} else {
		printPlayerHints(*out)
	}

	if *listVoices {
		voices, err := service.GetAvailableVoices(ctx)
		if err != nil {
			logger.Warn("Failed to list voices", zap.Error(err))
			return
		}
		fmt.Printf("Available voices (%d):\n", len(voices))
		for _, voice := range voices {
			fmt.Printf("  %s  %s\n", voice["voice_id"], voice["name"])
		}
	}
}

// playPCM tries the common command-line players with arguments for raw
// 16kHz signed 16-bit mono, the format the adapter emits by default.
func playPCM(path string) error {
	players := [][]string{
		{"play", "-t", "raw", "-r", "16000", "-e", "signed", "-b", "16", "-c", "1", path},
		{"ffplay", "-f", "s16le", "-ar", "16000", "-ac", "1", "-nodisp", "-autoexit", path},
		{"aplay", "-f", "S16_LE", "-r", "16000", "-c", "1", path},
	}
	for _, argv := range players {
		if _, err := exec.LookPath(argv[0]); err != nil {
			continue
		}
		if err := exec.Command(argv[0], argv[1:]...).Run(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no suitable audio player found")
}

func printPlayerHints(path string) {
	fmt.Printf("  play -t raw -r 16000 -e signed -b 16 -c 1 %s\n", path)
	fmt.Printf("  ffplay -f s16le -ar 16000 -ac 1 -nodisp -autoexit %s\n", path)
	fmt.Printf("  ffmpeg -f s16le -ar 16000 -ac 1 -i %s out.wav\n", path)
}
