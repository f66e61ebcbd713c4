package bot

// Command constants for Telegram bot commands.
const (
	CommandStart     = "/start"
	CommandHelp      = "/help"
	CommandLogin     = "/login"
	CommandLogout    = "/logout"
	CommandHome      = "/home"
	CommandSearch    = "/search"
	CommandShowcase  = "/showcase"
	CommandProduct   = "/product"
	CommandProfile   = "/profile"
	CommandPurchases = "/purchases"
	CommandManage    = "/manage"
	CommandUpload    = "/upload"
	CommandEdit      = "/edit"
	CommandNickname  = "/nickname"
	CommandInterests = "/interests"
	CommandWallet    = "/wallet"
	CommandVerify    = "/verify"
	CommandCancel    = "/cancel"
)

// menuCommands are published with setMyCommands, in menu order.
var menuCommands = []struct {
	name        string
	description string
}{
	{CommandHome, "Listings picked for you"},
	{CommandSearch, "Search listings by title"},
	{CommandShowcase, "Browse a category"},
	{CommandPurchases, "What you bought"},
	{CommandUpload, "Sell something new"},
	{CommandManage, "Your listings"},
	{CommandProfile, "Open a seller profile"},
	{CommandLogin, "Link your SlopeOasis account"},
	{CommandWallet, "Set your wallet bridge"},
	{CommandVerify, "Verify your wallet"},
	{CommandCancel, "Stop the current step"},
	{CommandHelp, "All commands"},
}
