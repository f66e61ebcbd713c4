package identity

import "strings"

// WalletFields is the narrow view of an identity used to find a wallet address.
type WalletFields struct {
	PrimaryWalletAddress     string
	ExternalAccountAddresses []string
	Web3WalletAddresses      []string
}

// WalletFields projects the user onto the fields that can carry a wallet.
func (u *User) WalletFields() WalletFields {
	var f WalletFields
	if u == nil {
		return f
	}
	for _, w := range u.Web3Wallets {
		if w.ID != "" && w.ID == u.PrimaryWeb3WalletID {
			f.PrimaryWalletAddress = w.Web3Wallet
		}
		f.Web3WalletAddresses = append(f.Web3WalletAddresses, w.Web3Wallet)
	}
	for _, a := range u.ExternalAccounts {
		f.ExternalAccountAddresses = append(f.ExternalAccountAddresses, a.Address)
	}
	return f
}

// WalletAddress picks the identity's wallet: the primary wallet, then the
// first external account address, then the first web3 wallet.
func WalletAddress(f WalletFields) (string, bool) {
	if addr := strings.TrimSpace(f.PrimaryWalletAddress); addr != "" {
		return addr, true
	}
	if len(f.ExternalAccountAddresses) > 0 {
		if addr := strings.TrimSpace(f.ExternalAccountAddresses[0]); addr != "" {
			return addr, true
		}
	}
	if len(f.Web3WalletAddresses) > 0 {
		if addr := strings.TrimSpace(f.Web3WalletAddresses[0]); addr != "" {
			return addr, true
		}
	}
	return "", false
}
