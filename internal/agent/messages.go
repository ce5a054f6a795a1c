package agent

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/tx"
)

// Chat lines shown to the user.
const (
	MsgRequestFailed   = "Sorry, there was an error processing your request. Please try again."
	MsgEmptyChat       = "Sorry, I couldn't generate a response."
	MsgUnexpected      = "I received an unexpected response type. Please try again."
	MsgMissingDetails  = "Missing transaction details."
	MsgTxInitiating    = "Transaction initiating... Please confirm the details to send."
	MsgTxCancelled     = "Transaction cancelled."
	msgCapabilities    = "I can help you with:\n- Real-time web search (crypto prices, news, market data)\n- Check wallet balances and transactions\n- Send native tokens on supported chains\n- Explain blockchain concepts and DeFi strategies\n- Check gas fees and optimize transactions"
	msgConnectedSuffix = "What would you like to know?"
)

// SuggestedQueries are offered by /help.
var SuggestedQueries = []string{
	"How do I swap ETH for USDC?",
	"What are the current gas fees?",
	"Send 0.1 ETH to my friend",
	"Check my wallet balance",
	"Explain DeFi yield farming",
	"How to bridge tokens to Polygon?",
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// Welcome is the first line of a session.
func Welcome(account *common.Address) string {
	var b strings.Builder
	b.WriteString("Welcome to MonAgent! I'm your AI blockchain assistant.")
	if account != nil {
		fmt.Fprintf(&b, " I can see you're connected with wallet %s.", ShortAddress(*account))
	}
	b.WriteString("\n\n")
	b.WriteString(msgCapabilities)
	b.WriteString("\n\n")
	if account == nil {
		b.WriteString("Connect your wallet to get personalized assistance with your specific wallet address. ")
	}
	b.WriteString(msgConnectedSuffix)
	return b.String()
}

// SentMessage describes a successful transfer.
func SentMessage(p tx.Pending, out *tx.Outcome) string {
	msg := fmt.Sprintf("Transaction sent on %s to %s for %s.", p.ChainLabel, ShortAddress(out.To), displayAmount(out.Amount, out.Value, p.Decimals))
	if out.Fallback && out.Chain != "" && out.Chain != p.Chain {
		msg += fmt.Sprintf(" Your wallet submitted it on %s.", out.Chain)
	}
	if out.ExplorerURL != "" {
		msg += "\n" + out.ExplorerURL
	} else {
		msg += "\nHash: " + out.Hash.Hex()
	}
	return msg
}

// displayAmount renders value exactly in the native unit, falling back to the
// amount as typed when no base-unit value is known.
func displayAmount(amount string, value *big.Int, decimals uint8) string {
	if value == nil {
		return amount
	}
	return chain.FormatUnits(value, decimals)
}

// FailedMessage describes a failed transfer.
func FailedMessage(err error) string {
	msg := "Please try again"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return "Transaction failed: " + msg
}
