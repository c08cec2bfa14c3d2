package account

import "fmt"

// Account is an established wallet account. PrivateKey is hex-encoded and is
// only handed to the transfer builder for signing.
type Account struct {
	Alias      string
	Address    string
	PrivateKey string
}

func (a Account) String() string {
	if a.Alias == "" {
		return a.Address
	}
	return fmt.Sprintf("%s (%s)", a.Alias, a.Address)
}
