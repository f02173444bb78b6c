// Package i18n holds the user-facing message catalog. Translations live in
// memory as flat key/value maps per locale; {name}-style placeholders are
// substituted at lookup time.
package i18n

import "strings"

// DefaultLocale is used when a locale has no catalog or a key is missing.
const DefaultLocale = "en"

var catalogs = map[string]map[string]string{
	"en": en,
	"it": it,
}

// Translate returns the message for key in the given locale, substituting
// every {var} placeholder with the matching value from vars. Unknown locales
// fall back to English; an unknown key returns the key itself so a missing
// translation is visible instead of silent.
func Translate(locale, key string, vars map[string]string) string {
	catalog, ok := catalogs[locale]
	if !ok {
		catalog = catalogs[DefaultLocale]
	}
	msg, ok := catalog[key]
	if !ok {
		msg, ok = catalogs[DefaultLocale][key]
		if !ok {
			return key
		}
	}
	for k, v := range vars {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

var en = map[string]string{
	"commands.start": "Start the bot and get an authentication link",
	"commands.me":    "Get information about your Twitch account",
	"commands.help":  "Get help with the bot",

	"start.alreadyauthorized": "You are already authorized to access the group. Join us with this invitation link!\n<i>Note that the link is valid for three days and limited to one access.</i>",
	"start.msg":               "Hi! Login with Twitch to access the group.\n<i>The link expires in 5 minutes</i>",
	"start.login":             "🟣 Login with Twitch",

	"me.notprivate":    "Hi {name}, please use this command in a private chat with me.",
	"me.loading":       "Loading your info...",
	"me.info":          "<b>Your info</b>:\n\nTwitch username: {username}\nE-Mail: {email}\nID: {id}\nSubscribed: {subscribed}\n{subInfo}",
	"me.subscribed":    "Yes ✅",
	"me.notsubscribed": "No ❌",
	"me.tier":          "Tier: {tier}\n",
	"me.gifted":        "Is it a gift? {gifted}\n",
	"me.yes":           "Yes\n",
	"me.no":            "No\n",
	"me.subscribe":     "💳 Subscribe now!",
	"me.notlogged":     "It seems that you are not logged in. Please, use the /start command to login with Twitch.",
	"me.error":         "Error while loading your info.",

	"help.msg": "<b>Help</b>\n\n/start - Login with Twitch\n/me - Check your account info\n/help - Show this help message\n\nWhen you login with Twitch, you will obtain a unique link to access the group. Note that the link is strictly linked to your Twitch and Telegram accounts and doesn't work for other users.\nYou can stay in the group until you have a valid Twitch subscription.",

	"auth.success":       "Hi, {name}! Thank you for your sub! Here's your invitation link\n<i>Note that the link is valid for three days and limited to one access.</i>",
	"auth.notsubscribed": "Hi, {name}! If you want to access the exclusive group, please subscribe to the channel",
	"auth.join":          "💬 Join the Group",
	"auth.subscribe":     "💳 Subscribe now!",

	"success.title":   "Success!",
	"success.message": "If this window doesn't close automatically, you can manually close it now.",

	"error.title":   "Uh oh!",
	"error.message": "Something went wrong. Please try again later.",

	"scheduled.todaytitle":   "🧨 <b>Today's ban list:</b>\n",
	"scheduled.nobanstoday":  "No one to ban today. Hurray! 🍾",
	"scheduled.warningtitle": "⚠️ <b>Users with expired subscriptions (three days maximum left to renew):</b>\n",
	"scheduled.renewsub":     "💳 Renew your subscription now!",
}

var it = map[string]string{
	"commands.start": "Avvia il bot e ottieni un link per autenticarti",
	"commands.me":    "Ottieni informazioni sul tuo account Twitch",
	"commands.help":  "Ottieni aiuto per il bot",

	"start.alreadyauthorized": "Sei già autorizzato ad accedere al gruppo. Unisciti a noi con questo link di invito!\n<i>Nota che il link è valido per tre giorni e limitato a un accesso.</i>",
	"start.msg":               "Ciao! Accedi con Twitch per entrare nel gruppo.\n<i>Il link scade in 5 minuti</i>",
	"start.login":             "🟣 Login con Twitch",

	"me.notprivate":    "Ciao {name}, usa questo comando in una chat privata con me.",
	"me.loading":       "Carico le tue informazioni...",
	"me.info":          "<b>Le tue informazioni</b>:\n\nUsername Twitch: {username}\nE-Mail: {email}\nID: {id}\nAbbonato: {subscribed}\n{subInfo}",
	"me.subscribed":    "Sì ✅",
	"me.notsubscribed": "No ❌",
	"me.tier":          "Livello: {tier}\n",
	"me.gifted":        "È un regalo? {gifted}\n",
	"me.yes":           "Sì\n",
	"me.no":            "No\n",
	"me.subscribe":     "💳 Abbonati ora!",
	"me.notlogged":     "Sembra che tu non sia autenticato. Usa il comando /start per accedere con Twitch.",
	"me.error":         "Si è verificato un errore durante il caricamento delle tue informazioni.",

	"help.msg": "<b>Aiuto</b>\n\n/start - Accedi con Twitch\n/me - Controlla le informazioni sul tuo account\n/help - Mostra questo messaggio di aiuto\n\nQuando effettui il login con Twitch, otterrai un link univoco per accedere al gruppo. Nota che il link è strettamente collegato ai tuoi account di Twitch e di Telegram e non funzionerà con altri utenti.\nPuoi rimanere nel gruppo fino a quando avrai un abbonamento Twitch valido.",

	"auth.success":       "Ciao, {name}! Grazie per il tuo abbonamento! Ecco il tuo link di invito\n<i>Nota che il link è valido per tre giorni ed è limitato a un solo accesso.</i>",
	"auth.notsubscribed": "Ciao, {name}! Se vuoi accedere al gruppo esclusivo, abbonati al canale",
	"auth.join":          "💬 Unisciti al Gruppo",
	"auth.subscribe":     "💳 Abbonati ora!",

	"success.title":   "Fatto!",
	"success.message": "Se questa finestra non si chiude automaticamente, puoi chiuderla ora manualmente.",

	"error.title":   "Oh no!",
	"error.message": "Qualcosa è andato storto. Riprova più tardi.",

	"scheduled.todaytitle":   "🧨 <b>Lista dei ban di oggi:</b>\n",
	"scheduled.nobanstoday":  "Nessuno da bannare oggi. Yay! 🍾",
	"scheduled.warningtitle": "⚠️ <b>Utenti con abbonamenti scaduti (tre giorni massimi per rinnovare):</b>\n",
	"scheduled.renewsub":     "💳 Rinnova il tuo abbonamento ora!",
}
