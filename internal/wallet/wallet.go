// Package wallet speaks the EIP-1193 request protocol to a user's wallet.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

// ErrNoAccounts is returned when the wallet exposes no account.
var ErrNoAccounts = errors.New("wallet returned no accounts")

// Provider forwards one EIP-1193 request to a wallet.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// RPCError is an error object returned by the wallet.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Code extracts the provider error code from err, or 0.
func Code(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}

// IsUserRejected reports whether the user declined the prompt.
func IsUserRejected(err error) bool {
	return Code(err) == CodeUserRejected
}

// Currency describes a chain's native currency.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network is the wallet_addEthereumChain parameter object.
type Network struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
}

// Polygon is the network payments settle on.
var Polygon = Network{
	ChainID:           "0x89",
	ChainName:         "Polygon Mainnet",
	NativeCurrency:    Currency{Name: "POL", Symbol: "POL", Decimals: 18},
	RPCURLs:           []string{"https://polygon-rpc.com"},
	BlockExplorerURLs: []string{"https://polygonscan.com"},
}

// SwitchNetwork selects n in the wallet, registering it first when the wallet
// does not know the chain.
func SwitchNetwork(ctx context.Context, p Provider, n Network) error {
	switchParams := map[string]string{"chainId": n.ChainID}

	_, err := p.Request(ctx, "wallet_switchEthereumChain", switchParams)
	if Code(err) != CodeUnrecognizedChain {
		return err
	}

	if _, err := p.Request(ctx, "wallet_addEthereumChain", n); err != nil {
		return err
	}
	_, err = p.Request(ctx, "wallet_switchEthereumChain", switchParams)
	return err
}

// RequestAccounts asks the user to expose accounts and returns the first one.
func RequestAccounts(ctx context.Context, p Provider) (string, error) {
	raw, err := p.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return "", err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", fmt.Errorf("decode accounts: %w", err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}

// Transaction is the eth_sendTransaction parameter object.
type Transaction struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// SendTransaction submits tx and returns its hash.
func SendTransaction(ctx context.Context, p Provider, tx Transaction) (string, error) {
	raw, err := p.Request(ctx, "eth_sendTransaction", tx)
	if err != nil {
		return "", err
	}
	return decodeString(raw, "transaction hash")
}

// PersonalSign asks address to sign message.
func PersonalSign(ctx context.Context, p Provider, message, address string) (string, error) {
	raw, err := p.Request(ctx, "personal_sign", message, address)
	if err != nil {
		return "", err
	}
	return decodeString(raw, "signature")
}

func decodeString(raw json.RawMessage, what string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", what, err)
	}
	if s == "" {
		return "", fmt.Errorf("empty %s", what)
	}
	return s, nil
}

// WeiToHex converts a base-10 wei amount to the 0x-prefixed quantity wallets expect.
func WeiToHex(wei string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(wei), 10)
	if !ok {
		return "", fmt.Errorf("invalid wei amount %q", wei)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("negative wei amount %q", wei)
	}
	return "0x" + n.Text(16), nil
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
