// Package tgui holds small Telegram UI helpers: HTML-safe text building for
// ParseMode=HTML and the inline callback data format used by the router.
package tgui
