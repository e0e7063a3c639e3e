package mail

import (
	"fmt"
	"html"
	"time"
)

// TemporaryPasswordEmail builds the credentials message sent when an
// application is approved. token is the direct-redemption token; when
// empty, the change link is omitted and only the login path remains.
func TemporaryPasswordEmail(name, email, temporaryPassword, token string, expires time.Time, portalBaseURL string) (subject, body string) {
	subject = "Votre candidature a été acceptée"
	body = fmt.Sprintf(`<h2>Bienvenue, %s !</h2>
<p>Votre candidature de technicien a été acceptée. Un compte a été créé pour vous.</p>
<p>Identifiant : <b>%s</b><br>
Mot de passe temporaire : <b>%s</b></p>
<p>Ce mot de passe expire le %s. À la première connexion vous devrez en choisir un nouveau.</p>
<p><a href="%s/login">Se connecter</a></p>`,
		html.EscapeString(name),
		html.EscapeString(email),
		html.EscapeString(temporaryPassword),
		expires.Format("02/01/2006 15:04"),
		portalBaseURL)
	if token != "" {
		body += fmt.Sprintf(`
<p>Ou définissez directement votre mot de passe : <a href="%s/change-temporary-password?token=%s">choisir un mot de passe</a></p>`,
			portalBaseURL, token)
	}
	return subject, body
}

// RejectionEmail builds the message sent when an application is rejected.
// notes is the reason stated by the reviewing admin.
func RejectionEmail(name, notes string) (subject, body string) {
	subject = "Votre candidature n'a pas été retenue"
	reason := notes
	if reason == "" {
		reason = "Votre profil ne correspond pas à nos besoins actuels."
	}
	body = fmt.Sprintf(`<h2>Bonjour %s,</h2>
<p>Nous vous remercions de l'intérêt porté à notre atelier. Après étude de votre dossier, nous ne donnons pas suite à votre candidature.</p>
<p>Motif : %s</p>`,
		html.EscapeString(name),
		html.EscapeString(reason))
	return subject, body
}

// ResetEmail builds the password-reset message. The token is embedded in a
// link to the portal's reset page.
func ResetEmail(token, portalBaseURL string, expires time.Time) (subject, body string) {
	subject = "Réinitialisation de votre mot de passe"
	body = fmt.Sprintf(`<h2>Réinitialisation du mot de passe</h2>
<p>Une demande de réinitialisation a été faite pour votre compte. Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.</p>
<p><a href="%s/reset-password?token=%s">Choisir un nouveau mot de passe</a></p>
<p>Ce lien expire le %s.</p>`,
		portalBaseURL,
		token,
		expires.Format("02/01/2006 15:04"))
	return subject, body
}
