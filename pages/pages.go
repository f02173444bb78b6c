// Package pages renders the static HTML shown in the browser after the OAuth
// callback completes.
package pages

import (
	"fmt"

	"github.com/onnwee/subgate/i18n"
)

const header = `
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css" rel="stylesheet" integrity="sha384-QWTKZyjpPEjISv5WaRU9OFeRpok6YctnYmDr5pNlyT2bRjXh0JMhjY6hW+ALEwIH" crossorigin="anonymous">
    <script src="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/js/bootstrap.bundle.min.js" integrity="sha384-YvpcrYf0tY3lHB60NNkmXc5s9fDVZLESaAA55NDzOxhy9GkcIdslK1eN7N6jIeHz" crossorigin="anonymous"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap-icons@1.11.3/font/bootstrap-icons.min.css">

    <style>
        .bounce {
            animation: bounce 2s ease infinite;
        }
        @keyframes bounce {
            70% { transform:translateY(0%); }
            80% { transform:translateY(-15%); }
            90% { transform:translateY(0%); }
            95% { transform:translateY(-7%); }
            97% { transform:translateY(0%); }
            99% { transform:translateY(-3%); }
            100% { transform:translateY(0); }
        }
    </style>
`

// Success returns the page shown after a completed login. It tries to close
// itself; the bouncing arrow points at Telegram's in-app back button for
// clients that refuse window.close.
func Success(locale string) string {
	title := i18n.Translate(locale, "success.title", nil)
	message := i18n.Translate(locale, "success.message", nil)
	return fmt.Sprintf(`<!DOCTYPE html>
<head>
    %s
    <title>%s</title>

    <script>
        window.onload = function () {
            window.close()
        }
    </script>
</head>

<body>
    <div class="position-absolute top-0 start-0 p-2 bounce"><i class="bi bi-arrow-up" style="font-size: 2rem;"></i></div>
    <div class="container w-100 h-100 d-flex flex-column justify-content-center align-items-center mt-5">
        <i class="bi bi-cloud-check text-success" style="font-size: 6rem"></i>
        <h1 class="text-center">%s</h1>
        <p class="mt-2 text-center">%s</p>
    </div>
</body>

</html>`, header, title, title, message)
}

// Error returns the generic failure page.
func Error(locale string) string {
	title := i18n.Translate(locale, "error.title", nil)
	message := i18n.Translate(locale, "error.message", nil)
	return fmt.Sprintf(`<!DOCTYPE html>
<head>
    %s
    <title>%s</title>
</head>

<body>
    <div class="container w-100 h-100 d-flex flex-column justify-content-center align-items-center mt-5">
        <i class="bi bi-bandaid text-danger" style="font-size: 6rem"></i>
        <h1 class="text-center">%s</h1>
        <p class="mt-2 text-center">%s</p>
    </div>
</body>

</html>`, header, title, title, message)
}
