package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/storacha/go-libstoracha/testutil"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/build"
	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/fingerprint"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestOfflineProofRoundTrip(t *testing.T) {
	data := testutil.RandomBytes(t, 10*1024+17)
	path := writeFile(t, data)
	tree := testutil.Must(outboard.BuildBulk(data))(t)
	hashHex := "0x" + strings.Repeat("ab", 32)
	ch := testutil.Must(challenge.Derive(common.HexToHash(hashHex), uint64(len(data))))(t)

	out, err := run(t, newOutboardCmd(), path)
	require.NoError(t, err)
	require.Contains(t, out, "root: "+tree.Root().String())
	encoded, err := os.ReadFile(path + ".obao")
	require.NoError(t, err)
	require.Equal(t, tree.Bytes(), encoded)

	out, err = run(t, newChallengeCmd(), "--block-hash", hashHex, "--file", path)
	require.NoError(t, err)
	require.Contains(t, out, fmt.Sprintf("chunk: %d\n", ch.ChunkIndex))
	require.Contains(t, out, fmt.Sprintf("offset: %d\n", ch.Offset))
	require.Contains(t, out, fmt.Sprintf("size: %d\n", ch.Size))

	_, err = run(t, newProveCmd(), path, "--outboard", path+".obao", "--block-hash", hashHex)
	require.NoError(t, err)
	proof, err := os.ReadFile(path + ".proof")
	require.NoError(t, err)
	want := testutil.Must(tree.Slice(bytes.NewReader(data), ch.Offset, ch.Size))(t)
	require.Equal(t, []byte(want), proof)

	t.Run("verify", func(t *testing.T) {
		extracted := filepath.Join(t.TempDir(), "extracted")
		out, err := run(t, newVerifyCmd(), path+".proof",
			"--root", tree.Root().String(),
			"--block-hash", hashHex,
			"--file-size", fmt.Sprint(len(data)),
			"--extract", extracted,
		)
		require.NoError(t, err)
		require.Contains(t, out, "verified")
		got, err := os.ReadFile(extracted)
		require.NoError(t, err)
		require.Equal(t, data[ch.Offset:ch.Offset+ch.Size], got)
	})

	t.Run("verify with wrong root", func(t *testing.T) {
		root := tree.Root()
		root[0] ^= 1
		_, err := run(t, newVerifyCmd(), path+".proof",
			"--root", root.String(),
			"--block-hash", hashHex,
			"--file-size", fmt.Sprint(len(data)),
		)
		require.ErrorIs(t, err, errProofInvalid)
	})

	t.Run("verify needs file size with block hash", func(t *testing.T) {
		_, err := run(t, newVerifyCmd(), path+".proof", "--root", tree.Root().String(), "--block-hash", hashHex)
		require.ErrorContains(t, err, "--file-size")
	})
}

func TestProveExplicitRange(t *testing.T) {
	data := testutil.RandomBytes(t, 3000)
	path := writeFile(t, data)
	tree := testutil.Must(outboard.BuildBulk(data))(t)
	out := filepath.Join(t.TempDir(), "range.proof")

	stdout, err := run(t, newProveCmd(), path, "--offset", "1024", "--size", "1024", "-o", out)
	require.NoError(t, err)
	require.Contains(t, stdout, "root: "+tree.Root().String())

	proof, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, outboard.VerifySlice(proof, tree.Root(), 1024, 1024))

	t.Run("needs a range", func(t *testing.T) {
		_, err := run(t, newProveCmd(), path, "--offset", "1024")
		require.Error(t, err)
	})

	t.Run("range flags exclude block hash", func(t *testing.T) {
		_, err := run(t, newProveCmd(), path, "--offset", "0", "--size", "1", "--block-hash", "0x"+strings.Repeat("00", 32))
		require.Error(t, err)
	})
}

func TestChallengeCmdErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"missing block hash", []string{"--file-size", "10"}},
		{"missing size", []string{"--block-hash", "0x" + strings.Repeat("00", 32)}},
		{"short block hash", []string{"--block-hash", "0x1234", "--file-size", "10"}},
		{"empty file", []string{"--block-hash", "0x" + strings.Repeat("00", 32), "--file-size", "0"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, newChallengeCmd(), tc.args...)
			require.Error(t, err)
		})
	}
}

func TestFingerprintCmd(t *testing.T) {
	data := testutil.RandomBytes(t, 4096)
	path := writeFile(t, data)
	root := fingerprint.Root(data)

	out, err := run(t, newFingerprintCmd(), path)
	require.NoError(t, err)
	require.Contains(t, out, "cid: "+fingerprint.CIDOf(data).String())
	require.Contains(t, out, "root: "+hex.EncodeToString(root[:]))
	require.Contains(t, out, "size: 4096")

	_, err = run(t, newFingerprintCmd(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, newVersionCmd())
	require.NoError(t, err)
	require.Contains(t, out, "version: "+build.Version)
}
