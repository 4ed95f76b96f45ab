package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xlemi/tunepitch/internal/config"
)

// writePCM16 writes a mono 16-bit PCM WAV file
func writePCM16(t *testing.T, sampleRate int, samples []float64) string {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		require.NoError(t, binary.Write(&data, binary.LittleEndian, int16(s*32767)))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		*cfg = *config.DefaultConfig()
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyze_TimestampsAndVoicedCount(t *testing.T) {
	const rate, frame = 44100, 2048

	// Three frames of A3 followed by two of silence
	samples := make([]float64, 5*frame)
	for i := 0; i < 3*frame; i++ {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/rate)
	}
	path := writePCM16(t, rate, samples)

	out, err := runRoot(t, "analyze", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "   0.000s  A3"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "   0.046s  A3"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "   0.093s  A3"), lines[2])
	assert.Equal(t, "3 of 5 frames voiced", lines[3])
}

func TestAnalyze_Hop(t *testing.T) {
	const rate, frame = 44100, 2048

	samples := make([]float64, 2*frame)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/rate)
	}
	path := writePCM16(t, rate, samples)

	out, err := runRoot(t, "analyze", path, "--hop", "1024")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "   0.023s  A3"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "   0.046s  A3"), lines[2])
	assert.Equal(t, "3 of 3 frames voiced", lines[3])
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, err := runRoot(t, "analyze", filepath.Join(t.TempDir(), "absent.wav"))
	assert.Error(t, err)
}
