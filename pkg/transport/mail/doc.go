// Package mail sends scheduled emails over SMTP.
//
// Messages are built as multipart/mixed: a UTF-8 quoted-printable text part
// followed by one base64 part per attachment. Attachments that do not exist
// on disk are skipped with a warning rather than failing the delivery.
package mail
