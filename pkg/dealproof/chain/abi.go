package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DealsABI is the subset of the deal contract used for proving.
const DealsABI = `[
  {
    "type": "function",
    "name": "getOffer",
    "stateMutability": "view",
    "inputs": [{"name": "offerId", "type": "uint256"}],
    "outputs": [
      {"name": "dealStartBlock", "type": "uint256"},
      {"name": "dealLengthInBlocks", "type": "uint256"},
      {"name": "proofFrequencyInBlocks", "type": "uint256"},
      {"name": "ipfsFileCid", "type": "string"},
      {"name": "fileSize", "type": "uint256"},
      {"name": "blake3Checksum", "type": "bytes32"},
      {"name": "executorAddress", "type": "address"},
      {"name": "dealStatus", "type": "uint8"}
    ]
  },
  {
    "type": "function",
    "name": "getProofBlock",
    "stateMutability": "view",
    "inputs": [
      {"name": "offerId", "type": "uint256"},
      {"name": "window", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "submitProof",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "offerId", "type": "uint256"},
      {"name": "window", "type": "uint256"},
      {"name": "targetBlockStart", "type": "uint256"},
      {"name": "baoProofData", "type": "bytes"}
    ],
    "outputs": []
  }
]`

// ParseDealsABI parses DealsABI.
func ParseDealsABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(DealsABI))
}
